package models

// AnalysisResult is what the analysis service returns for one image pair.
// ResultImage1URL points at the detections overlay, ResultImage2URL at the
// difference mask.
type AnalysisResult struct {
	ResultImage1URL string   `json:"resultImage1Url"`
	ResultImage2URL string   `json:"resultImage2Url"`
	TextInfo        TextInfo `json:"textInfo"`
}

// TextInfo carries the similarity metrics of an analysis
type TextInfo struct {
	SSIM       float64 `json:"ssim"`
	Difference float64 `json:"difference"` // percent of changed pixels
}
