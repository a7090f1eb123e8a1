package api

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Martin-Hayot/auctionhub/pkg/errors"
	"github.com/Martin-Hayot/auctionhub/pkg/types"
)

// endTimeLayouts are tried in order. The layouts without a zone are read as
// local time, which is what an HTML datetime-local input sends.
var endTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// maxStartingPrice is the exclusive upper bound NUMERIC(10,2) can store.
const maxStartingPrice = 1e8

// amount accepts a JSON number or a numeric string. NaN and infinities are rejected.
type amount float64

func (a *amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New(errors.ErrBadRequest, "starting_price must be a number")
		}
		*a = amount(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*a = amount(v)
	return nil
}

type createAuctionRequest struct {
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	StartingPrice *amount `json:"starting_price"`
	EndTime       string  `json:"end_time"`
}

func (r createAuctionRequest) validate() (types.NewAuction, error) {
	title := strings.TrimSpace(r.Title)
	if title == "" || r.StartingPrice == nil || strings.TrimSpace(r.EndTime) == "" {
		return types.NewAuction{}, errors.New(errors.ErrBadRequest, "Missing required fields")
	}
	if len([]rune(title)) > maxTitleLength {
		return types.NewAuction{}, errors.New(errors.ErrBadRequest, "Title must be at most 100 characters")
	}
	price := float64(*r.StartingPrice)
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return types.NewAuction{}, errors.New(errors.ErrBadRequest, "Starting price must be positive")
	}
	if math.Round(price*100)/100 >= maxStartingPrice {
		return types.NewAuction{}, errors.New(errors.ErrBadRequest, "Starting price is too large")
	}

	end, err := parseEndTime(r.EndTime)
	if err != nil {
		return types.NewAuction{}, err
	}

	return types.NewAuction{
		Title:         title,
		Description:   r.Description,
		StartingPrice: price,
		EndTime:       end,
	}, nil
}

func parseEndTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range endTimeLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New(errors.ErrBadRequest, "Invalid end_time")
}

type createBackupResponse struct {
	Message string `json:"message"`
	types.SnapshotDescriptor
}
