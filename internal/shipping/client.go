package shipping

import (
	"context"
	"errors"
)

// ErrUnknownRegion is returned by quoting clients when the destination is not served.
var ErrUnknownRegion = errors.New("shipping: unknown region")

// RateReq describes a shipping rate request.
type RateReq struct {
	Region string
	Method DeliveryMethod
}

// Rate describes a returned shipping rate option.
type Rate struct {
	Region   string         `json:"region"`
	Method   DeliveryMethod `json:"method"`
	Price    int64          `json:"cost"`
	Fallback bool           `json:"fallback,omitempty"`
}

// Client defines the behaviour required to quote shipping rates.
type Client interface {
	Rates(ctx context.Context, r RateReq) ([]Rate, error)
}

// TableClient quotes from a Resolver. Unlike Resolver.Price it reports unknown
// regions as ErrUnknownRegion so the storefront can reject the address.
type TableClient struct {
	Resolver *Resolver
}

// Rates returns the quote for the requested method, or one quote per offered
// method when r.Method is empty.
func (c TableClient) Rates(ctx context.Context, r RateReq) ([]Rate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res := c.Resolver
	if res == nil {
		res = DefaultResolver()
	}
	name, rr, ok := res.Lookup(r.Region)
	if !ok {
		return nil, ErrUnknownRegion
	}
	if r.Method != "" {
		if !r.Method.Valid() {
			return nil, ErrUnknownMethod
		}
		return []Rate{{
			Region:   name,
			Method:   r.Method,
			Price:    res.Price(name, r.Method),
			Fallback: r.Method == MethodPickupPoint && rr.Pickup == nil,
		}}, nil
	}
	rates := []Rate{{Region: name, Method: MethodHome, Price: rr.Home}}
	if rr.Pickup != nil {
		rates = append(rates, Rate{Region: name, Method: MethodPickupPoint, Price: *rr.Pickup})
	}
	return rates, nil
}
