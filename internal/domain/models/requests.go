package models

// Requests for the scheduler-trigger HTTP endpoints. Defined in domain for
// consistency and reuse.

type PredictionCycleRequest struct {
	Region string `json:"region" validate:"required"`
	AsOf   string `json:"as_of" validate:"omitempty,datetime=2006-01-02"`
}

type LearningCycleRequest struct {
	Region         string `json:"region" validate:"required"`
	EvaluationDate string `json:"evaluation_date" validate:"omitempty,datetime=2006-01-02"`
}

type TopPredictionsRequest struct {
	Region string `query:"region" json:"region" validate:"required"`
	N      int    `query:"n" json:"n" default:"10" validate:"gte=1,lte=100"`
	Date   string `query:"date" json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type RegimeRequest struct {
	Region string `query:"region" json:"region" validate:"required"`
	Window int    `query:"window" json:"window" default:"20" validate:"gte=5,lte=250"`
}

type ModelInfoRequest struct {
	Region string `param:"region" validate:"required"`
}
