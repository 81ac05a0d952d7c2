package rekognition

// Config holds configuration for the AWS Rekognition detector
type Config struct {
	// Region is the AWS region where Rekognition service will be used (e.g., "us-east-1")
	Region string

	// MinConfidence drops detections Rekognition is less sure about (0-100)
	MinConfidence float32

	// MinQuality drops faces whose brightness/sharpness score is below it (0-1)
	MinQuality float64

	// MaxImageSide bounds the longest side of frames sent to AWS
	MaxImageSide int
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		Region:        "us-east-1",
		MinConfidence: 90,
		MinQuality:    0,
		MaxImageSide:  1920,
	}
}
