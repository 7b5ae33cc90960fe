package recognition

import (
	"context"
	"fmt"

	speech "cloud.google.com/go/speech/apiv1"
	"google.golang.org/api/option"

	"github.com/Ali-AlHumidi/speechbridge/internal/shared"
)

// GoogleDialer opens streaming calls on Google Cloud Speech-to-Text
type GoogleDialer struct {
	client *speech.Client
}

// NewGoogleDialer creates the Speech-to-Text client. Missing or unusable
// credentials are reported as a configuration error.
func NewGoogleDialer(ctx context.Context, opts ...option.ClientOption) (*GoogleDialer, error) {
	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: speech client: %v", shared.ErrConfiguration, err)
	}
	return &GoogleDialer{client: client}, nil
}

// Dial implements Dialer
func (d *GoogleDialer) Dial(ctx context.Context) (Stream, error) {
	stream, err := d.client.StreamingRecognize(ctx)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// Close releases the client connection
func (d *GoogleDialer) Close() error {
	return d.client.Close()
}
