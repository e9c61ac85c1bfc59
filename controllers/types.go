package controllers

import "product-wizard-service/models"

// StepRequest names a wizard step, e.g. "media".
type StepRequest struct {
	Step string `json:"step" binding:"required"`
}

// SkipRequest picks the manual-entry step to land on; basics by default.
type SkipRequest struct {
	Target string `json:"target"`
}

type LookupRequest struct {
	Code string `json:"code" binding:"required,max=64"`
}

// MediaRequest carries either a URL or a base64 encoded blob.
type MediaRequest struct {
	URL         string `json:"url" binding:"omitempty,url"`
	Data        string `json:"data" binding:"omitempty,base64"`
	ContentType string `json:"content_type"`
	Filename    string `json:"filename"`
}

type PresignRequest struct {
	Filename       string `json:"filename" binding:"required"`
	ContentType    string `json:"content_type" binding:"required"`
	ExpiresSeconds int64  `json:"expires_seconds" binding:"omitempty,min=60,max=3600"`
}

type ContributionStatusRequest struct {
	Status models.ContributionStatus `json:"status" binding:"required,oneof=verified rejected"`
}

// LookupResponse always succeeds from the client's point of view; when
// ManualEntry is set the wizard continues without a candidate.
type LookupResponse struct {
	Result      models.LookupResult    `json:"result"`
	ManualEntry bool                   `json:"manual_entry"`
	Message     string                 `json:"message,omitempty"`
	Session     models.SessionSnapshot `json:"session"`
}
