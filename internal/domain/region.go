package domain

import "image"

// FaceRegion is a face bounding box in the pixel space of the frame it was detected in.
type FaceRegion struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// RegionFromRect converts an image.Rectangle (Min inclusive, Max exclusive) to a FaceRegion.
func RegionFromRect(r image.Rectangle) FaceRegion {
	return FaceRegion{Top: r.Min.Y, Right: r.Max.X, Bottom: r.Max.Y, Left: r.Min.X}
}

func (r FaceRegion) Rect() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Right, r.Bottom)
}

func (r FaceRegion) Width() int {
	return r.Right - r.Left
}

func (r FaceRegion) Height() int {
	return r.Bottom - r.Top
}

func (r FaceRegion) Empty() bool {
	return r.Width() <= 0 || r.Height() <= 0
}

// DetectedFace pairs a region with the embedding extracted from it.
type DetectedFace struct {
	Region    FaceRegion `json:"region"`
	Embedding Embedding  `json:"-"`
}

// CloneFaces deep-copies a face list so callers cannot mutate a cached result.
func CloneFaces(faces []DetectedFace) []DetectedFace {
	if faces == nil {
		return nil
	}
	out := make([]DetectedFace, len(faces))
	for i, f := range faces {
		out[i] = DetectedFace{Region: f.Region, Embedding: f.Embedding.Clone()}
	}
	return out
}
