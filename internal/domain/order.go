package domain

import "time"

// WorkPiece is a finished piece a client may order.
type WorkPiece string

const (
	WorkPieceP5 WorkPiece = "P5"
	WorkPieceP6 WorkPiece = "P6"
	WorkPieceP7 WorkPiece = "P7"
	WorkPieceP9 WorkPiece = "P9"
)

// OrderableWorkPieces lists every piece a client order may name.
var OrderableWorkPieces = []WorkPiece{WorkPieceP5, WorkPieceP6, WorkPieceP7, WorkPieceP9}

// Orderable reports whether clients may order w.
func (w WorkPiece) Orderable() bool {
	for _, p := range OrderableWorkPieces {
		if p == w {
			return true
		}
	}
	return false
}

// Order is a client order row. The resolver only reads it.
type Order struct {
	ID           int64     `json:"id"`
	PieceID      int64     `json:"piece_id"`
	ClientID     int64     `json:"client_id"`
	Number       int32     `json:"number"`
	Quantity     int32     `json:"quantity"`
	DueDate      int32     `json:"due_date"`
	LatePenalty  int64     `json:"late_pen"`
	EarlyPenalty int64     `json:"early_pen"`
	CreatedAt    time.Time `json:"created_at"`
}

// BOMEntry is one production step for one unit of one order.
//
// PieceNumber ranges 1..PiecesTotal and StepNumber 1..StepsTotal, with steps
// numbered in production order (raw material first).
type BOMEntry struct {
	ID               int64 `json:"id"`
	OrderID          int64 `json:"order_id"`
	TransformationID int64 `json:"transformation_id"`
	PieceNumber      int32 `json:"piece_number"`
	PiecesTotal      int32 `json:"pieces_total"`
	StepNumber       int32 `json:"step_number"`
	StepsTotal       int32 `json:"steps_total"`
}
