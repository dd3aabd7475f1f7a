package errors

import "fmt"

// Lookup error codes.
const (
	CodeOrderNotFound          = "ORDER_NOT_FOUND"
	CodeBOMEntryNotFound       = "BOM_ENTRY_NOT_FOUND"
	CodeTransformationNotFound = "TRANSFORMATION_NOT_FOUND"
	CodePieceNotFound          = "PIECE_NOT_FOUND"
)

// Resolution error codes.
const (
	CodeInvalidPayload    = "INVALID_PAYLOAD"
	CodeEmptyChain        = "EMPTY_CHAIN"
	CodeCyclicRecipe      = "CYCLIC_RECIPE"
	CodeInvalidOrder      = "INVALID_ORDER"
	CodeRecipeFetchFailed = "RECIPE_FETCH_FAILED"
	CodeBOMWriteFailed    = "BOM_WRITE_FAILED"
)

// Intake error codes.
const (
	CodeInvalidMoney         = "INVALID_MONEY"
	CodeInvalidOrderDocument = "INVALID_ORDER_DOCUMENT"
)

// CodeInternal labels errors that were never classified.
const CodeInternal = "INTERNAL"

// Convenience constructors using predefined codes.

// ErrOrderNotFound creates an order not found error.
func ErrOrderNotFound(orderID int64, err error) *AppError {
	return Wrap(joinNotFound(err), CodeOrderNotFound, fmt.Sprintf("order %d not found", orderID)).
		WithParams(map[string]interface{}{"order_id": orderID})
}

// ErrBOMEntryNotFound creates a BOM entry not found error.
func ErrBOMEntryNotFound(entryID int64, err error) *AppError {
	return Wrap(joinNotFound(err), CodeBOMEntryNotFound, fmt.Sprintf("bom entry %d not found", entryID)).
		WithParams(map[string]interface{}{"bom_entry_id": entryID})
}

// ErrTransformationNotFound creates a transformation not found error.
func ErrTransformationNotFound(transformationID int64, err error) *AppError {
	return Wrap(joinNotFound(err), CodeTransformationNotFound, fmt.Sprintf("transformation %d not found", transformationID)).
		WithParams(map[string]interface{}{"transformation_id": transformationID})
}

// ErrInvalidPayloadf creates an invalid notification payload error.
func ErrInvalidPayloadf(channel, payload string) *AppError {
	return Wrap(ErrInvalidPayload, CodeInvalidPayload, fmt.Sprintf("invalid payload on channel %s", channel)).
		WithParams(map[string]interface{}{"channel": channel, "payload": payload})
}

// ErrEmptyChainf reports a piece that resolved to zero production steps.
func ErrEmptyChainf(orderID, pieceID int64) *AppError {
	return Wrap(ErrEmptyChain, CodeEmptyChain, fmt.Sprintf("piece %d of order %d has no production steps", pieceID, orderID)).
		WithParams(map[string]interface{}{"order_id": orderID, "piece_id": pieceID})
}

// ErrCyclicRecipef reports a transformation graph that loops back on a piece.
func ErrCyclicRecipef(pieceID int64) *AppError {
	return Wrap(ErrCyclicRecipe, CodeCyclicRecipe, fmt.Sprintf("recipe for piece %d contains a cycle", pieceID)).
		WithParams(map[string]interface{}{"piece_id": pieceID})
}

func joinNotFound(err error) error {
	if err == nil {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %w", ErrNotFound, err)
}
