// Package label defines the image classification interface and its AWS
// Rekognition implementation.
package label

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	rektypes "github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Label is one detected label with its confidence in percent.
type Label struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Classifier detects labels in raw image bytes. Implementations wrap a
// remote, rate-limited service; callers are responsible for admission
// control.
type Classifier interface {
	DetectLabels(ctx context.Context, image []byte) ([]Label, error)
}

// RekognitionClassifier classifies images with AWS Rekognition.
type RekognitionClassifier struct {
	client *rekognition.Client
	logger zerolog.Logger

	maxLabels     int32
	minConfidence float32
}

// NewRekognitionClassifier creates a classifier from an AWS config. All
// labels are requested regardless of confidence; thresholding happens in
// the downstream filter, not here.
func NewRekognitionClassifier(cfg aws.Config) *RekognitionClassifier {
	return &RekognitionClassifier{
		client:        rekognition.NewFromConfig(cfg),
		logger:        log.With().Str("component", "rekognition").Logger(),
		maxLabels:     100,
		minConfidence: 0,
	}
}

// DetectLabels implements Classifier.
func (c *RekognitionClassifier) DetectLabels(ctx context.Context, image []byte) ([]Label, error) {
	out, err := c.client.DetectLabels(ctx, &rekognition.DetectLabelsInput{
		Image:         &rektypes.Image{Bytes: image},
		MaxLabels:     aws.Int32(c.maxLabels),
		MinConfidence: aws.Float32(c.minConfidence),
	})
	if err != nil {
		return nil, fmt.Errorf("rekognition detect labels: %w", err)
	}

	labels := make([]Label, 0, len(out.Labels))
	for _, l := range out.Labels {
		labels = append(labels, Label{
			Name:       aws.ToString(l.Name),
			Confidence: float64(aws.ToFloat32(l.Confidence)),
		})
	}

	c.logger.Debug().
		Int("labels", len(labels)).
		Int("image_bytes", len(image)).
		Msg("Image classified")

	return labels, nil
}
