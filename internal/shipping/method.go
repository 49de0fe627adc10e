package shipping

import (
	"errors"
	"strings"
)

// DeliveryMethod selects home delivery or pickup-point collection.
type DeliveryMethod string

const (
	MethodHome        DeliveryMethod = "HOME"
	MethodPickupPoint DeliveryMethod = "PICKUP_POINT"
)

// ErrUnknownMethod is returned for delivery method labels outside the enum.
var ErrUnknownMethod = errors.New("shipping: unknown delivery method")

// ParseDeliveryMethod converts an external label into a DeliveryMethod. The
// legacy "STOP_DESK" label maps to MethodPickupPoint.
func ParseDeliveryMethod(external string) (DeliveryMethod, error) {
	switch strings.ToLower(strings.TrimSpace(external)) {
	case "home", "domicile":
		return MethodHome, nil
	case "pickup_point", "pickup-point", "pickup", "stop_desk", "stopdesk", "stop-desk":
		return MethodPickupPoint, nil
	}
	return "", ErrUnknownMethod
}

// Valid reports whether m is one of the declared methods.
func (m DeliveryMethod) Valid() bool {
	return m == MethodHome || m == MethodPickupPoint
}
