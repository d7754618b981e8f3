package dto

import "docqa-be/pkg/rag"

type AskRequest struct {
	Question string  `json:"question" validate:"required"`
	TopK     int     `json:"topK" validate:"omitempty,min=1,max=20"`
	MinScore float64 `json:"minScore" validate:"omitempty,min=0,max=1"`
	Mode     string  `json:"mode" validate:"omitempty,oneof=hybrid vector bm25"`
	Priority int     `json:"priority" validate:"omitempty,min=1,max=9"`
}

// EnqueueResponse is returned with 202 when the question was queued.
type EnqueueResponse struct {
	JobId     string `json:"jobId"`
	StatusUrl string `json:"statusUrl"`
}

// SyncAnswerResponse is returned with 200 when the answer was produced
// inline, either on the sync endpoint or as a queue-down fallback.
type SyncAnswerResponse struct {
	RequestId string       `json:"requestId"`
	Answer    string       `json:"answer"`
	Sources   []rag.Source `json:"sources"`
	Metadata  rag.Metadata `json:"metadata"`
	Fallback  bool         `json:"fallback,omitempty"`
}

type StatsResponse struct {
	TotalVectors   int64            `json:"totalVectors"`
	UserFiles      int              `json:"userFiles"`
	CollectionName string           `json:"collectionName"`
	VectorSize     int              `json:"vectorSize"`
	Queues         map[string]int64 `json:"queues,omitempty"`
}
