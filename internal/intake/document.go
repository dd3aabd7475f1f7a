// Package intake receives client order documents over UDP and places every
// order they carry.
package intake

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"shopfloor.io/mes/internal/domain"
	apperrors "shopfloor.io/mes/internal/pkg/errors"
	"shopfloor.io/mes/internal/repository"
)

// Document is one inbound datagram:
//
//	<Orders>
//	  <ClientOrder>
//	    <Client NameId="Client AA"/>
//	    <Order Number="18" WorkPiece="P5" Quantity="8" DueDate="7" LatePen="$10" EarlyPen="$5"/>
//	  </ClientOrder>
//	</Orders>
type Document struct {
	XMLName      xml.Name      `xml:"Orders"`
	ClientOrders []ClientOrder `xml:"ClientOrder"`
}

// ClientOrder pairs a client with one order.
type ClientOrder struct {
	Client Client `xml:"Client"`
	Order  Order  `xml:"Order"`
}

// Client identifies the ordering client by name.
type Client struct {
	NameID string `xml:"NameId,attr" validate:"required"`
}

// Order is the order as sent by the client. Penalties are money strings such
// as "$123.45" or "123.45€".
type Order struct {
	Number    int32  `xml:"Number,attr" validate:"gte=0"`
	WorkPiece string `xml:"WorkPiece,attr" validate:"workpiece"`
	Quantity  int32  `xml:"Quantity,attr" validate:"gte=1"`
	DueDate   int32  `xml:"DueDate,attr" validate:"gte=0"`
	LatePen   string `xml:"LatePen,attr" validate:"required"`
	EarlyPen  string `xml:"EarlyPen,attr" validate:"required"`
}

// ParseDocument decodes one datagram. Structural problems fail the whole
// document; per-order problems are reported by Validate.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInvalidOrderDocument, "decode order document")
	}
	return &doc, nil
}

// Validator checks client orders before they are placed.
type Validator struct {
	v *validator.Validate
}

// NewValidator creates a Validator. The workpiece tag accepts only pieces
// clients may order.
func NewValidator() *Validator {
	v := validator.New()
	// Registration fails only for an empty tag or nil func.
	_ = v.RegisterValidation("workpiece", func(fl validator.FieldLevel) bool {
		return domain.WorkPiece(fl.Field().String()).Orderable()
	})
	return &Validator{v: v}
}

// Validate reports the first problem of co, naming the failed fields.
func (val *Validator) Validate(co ClientOrder) error {
	err := val.v.Struct(co)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Wrap(err, apperrors.CodeInvalidOrderDocument, "validate client order")
	}

	failed := make(map[string]string, len(verrs))
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		failed[fe.Namespace()] = fe.Tag()
		names = append(names, fe.Namespace())
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, apperrors.CodeInvalidOrderDocument,
		fmt.Sprintf("invalid client order: %s", strings.Join(names, ", "))).
		WithParams(map[string]interface{}{"fields": failed})
}

// PlaceParams converts a validated order into store parameters.
func PlaceParams(co ClientOrder) (repository.PlaceOrderParams, error) {
	late, err := domain.ParseMoney(co.Order.LatePen)
	if err != nil {
		return repository.PlaceOrderParams{}, apperrors.Wrap(err, apperrors.CodeInvalidMoney, "late penalty")
	}
	early, err := domain.ParseMoney(co.Order.EarlyPen)
	if err != nil {
		return repository.PlaceOrderParams{}, apperrors.Wrap(err, apperrors.CodeInvalidMoney, "early penalty")
	}
	return repository.PlaceOrderParams{
		ClientName:   co.Client.NameID,
		PieceName:    co.Order.WorkPiece,
		Number:       co.Order.Number,
		Quantity:     co.Order.Quantity,
		DueDate:      co.Order.DueDate,
		LatePenalty:  late,
		EarlyPenalty: early,
	}, nil
}
