package address

import (
	"context"
	"fmt"
	"strings"

	pkgerrors "github.com/loggas/loggas-backend/pkg/errors"
	"github.com/loggas/loggas-backend/pkg/maps"
)

// Service turns free-text delivery addresses into normalized, geolocated ones.
type Service interface {
	Suggest(ctx context.Context, query, sessionToken string) ([]Suggestion, error)
	Resolve(ctx context.Context, placeID string) (*DeliveryAddress, error)
}

type placesClient interface {
	Autocomplete(ctx context.Context, input, sessionToken string) ([]maps.Prediction, error)
	PlaceDetails(ctx context.Context, placeID string) (*maps.Place, error)
}

type service struct {
	places placesClient
}

func NewService(client placesClient) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("places client required")
	}
	return &service{places: client}, nil
}

type Suggestion struct {
	PlaceID     string `json:"place_id"`
	Description string `json:"description"`
}

// DeliveryAddress is what a driver needs to find the door.
type DeliveryAddress struct {
	PlaceID      string  `json:"place_id"`
	Street       string  `json:"street"`
	Number       string  `json:"number,omitempty"`
	Complement   string  `json:"complement,omitempty"`
	Neighborhood string  `json:"neighborhood,omitempty"`
	City         string  `json:"city"`
	State        string  `json:"state"`
	PostalCode   string  `json:"postal_code,omitempty"`
	Formatted    string  `json:"formatted"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Line         string  `json:"line"`
}

func (s *service) Suggest(ctx context.Context, query, sessionToken string) ([]Suggestion, error) {
	preds, err := s.places.Autocomplete(ctx, query, sessionToken)
	if err != nil {
		return nil, err
	}
	out := make([]Suggestion, 0, len(preds))
	for _, p := range preds {
		out = append(out, Suggestion{PlaceID: p.PlaceID, Description: p.Description})
	}
	return out, nil
}

func (s *service) Resolve(ctx context.Context, placeID string) (*DeliveryAddress, error) {
	place, err := s.places.PlaceDetails(ctx, placeID)
	if err != nil {
		return nil, err
	}
	return fromPlace(place)
}

func fromPlace(place *maps.Place) (*DeliveryAddress, error) {
	if place == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "place details missing")
	}
	if place.Latitude == 0 && place.Longitude == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "place location missing")
	}

	street, _ := place.Find("route")
	if street == "" && strings.TrimSpace(place.FormattedAddress) != "" {
		street = strings.TrimSpace(strings.Split(place.FormattedAddress, ",")[0])
	}
	if street == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address is not precise enough, pick a street address")
	}

	city := firstOf(place, "locality", "administrative_area_level_2", "postal_town")
	if city == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address has no city")
	}

	addr := &DeliveryAddress{
		PlaceID:      place.PlaceID,
		Street:       street,
		City:         city,
		Neighborhood: firstOf(place, "sublocality_level_1", "sublocality", "neighborhood"),
		State:        shortName(place, "administrative_area_level_1"),
		Formatted:    place.FormattedAddress,
		Latitude:     place.Latitude,
		Longitude:    place.Longitude,
	}
	addr.Number, _ = place.Find("street_number")
	addr.Complement, _ = place.Find("subpremise")
	addr.PostalCode, _ = place.Find("postal_code")
	addr.Line = addr.line()
	return addr, nil
}

// line renders the single-line form stored on customers and sales,
// e.g. "Rua das Flores, 120 - Centro, Sao Paulo/SP".
func (a *DeliveryAddress) line() string {
	var b strings.Builder
	b.WriteString(a.Street)
	if a.Number != "" {
		b.WriteString(", " + a.Number)
	}
	if a.Complement != "" {
		b.WriteString(" " + a.Complement)
	}
	if a.Neighborhood != "" {
		b.WriteString(" - " + a.Neighborhood)
	}
	b.WriteString(", " + a.City)
	if a.State != "" {
		b.WriteString("/" + a.State)
	}
	return b.String()
}

func firstOf(place *maps.Place, kinds ...string) string {
	for _, kind := range kinds {
		if v, ok := place.Find(kind); ok {
			return v
		}
	}
	return ""
}

func shortName(place *maps.Place, kind string) string {
	for _, comp := range place.Components {
		for _, typ := range comp.Types {
			if typ != kind {
				continue
			}
			if comp.ShortName != "" {
				return comp.ShortName
			}
			return comp.LongName
		}
	}
	return ""
}
