package models

import (
	"fmt"
	"strings"
	"time"
)

// MaxDealImages is the number of positional image slots on a deal.
const MaxDealImages = 3

// Deal represents a discounted offer listed on the marketplace.
type Deal struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	Title        string     `json:"title" gorm:"type:varchar(255);not null"`
	TitleKey     string     `json:"-" gorm:"type:varchar(255);index"`
	Description  string     `json:"description" gorm:"type:text"`
	StartDate    *time.Time `json:"start_date"`
	EndDate      *time.Time `json:"end_date"`
	Price        float64    `json:"price" gorm:"type:decimal(10,2)"`
	BasePrice    float64    `json:"base_price" gorm:"type:decimal(10,2)"`
	ShippingCost float64    `json:"shipping_cost" gorm:"type:decimal(10,2)"`
	Link         string     `json:"link" gorm:"type:varchar(255)"`
	Brand        string     `json:"brand" gorm:"type:varchar(255)"`
	Image1       string     `json:"image1" gorm:"type:varchar(255)"`
	Image2       string     `json:"image2" gorm:"type:varchar(255)"`
	Image3       string     `json:"image3" gorm:"type:varchar(255)"`
	CreatorID    uint       `json:"creator_id" gorm:"index"`
	Votes        int        `json:"votes" gorm:"default:0"`
	Permanent    bool       `json:"permanent"`
}

// FoldTitle is the case-folded form of a title used for searching.
// Databases disagree on folding non-ASCII text, so it is computed here.
func FoldTitle(title string) string { return strings.ToLower(title) }

// Images returns the image references in slot order, empty slots included.
func (d *Deal) Images() [MaxDealImages]string {
	return [MaxDealImages]string{d.Image1, d.Image2, d.Image3}
}

// SetImage stores ref in the 1-based slot. Out of range slots are ignored.
func (d *Deal) SetImage(slot int, ref string) {
	switch slot {
	case 1:
		d.Image1 = ref
	case 2:
		d.Image2 = ref
	case 3:
		d.Image3 = ref
	}
}

// GetUserID reports the owner of the deal.
func (d *Deal) GetUserID() uint { return d.CreatorID }

// DealPage is one page of the deal listing.
type DealPage struct {
	Deals      []Deal `json:"deals"`
	TotalPages int    `json:"totalPages"`
}

// DealQuery selects a page of deals, optionally filtered by title.
type DealQuery struct {
	Page     int
	PageSize int
	Name     string
}

// Offset is the number of rows skipped before the page starts.
func (q DealQuery) Offset() int { return (q.Page - 1) * q.PageSize }

// DealImage holds image bytes for the blob storage strategy.
type DealImage struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)"`
	ContentType string    `gorm:"type:varchar(100)"`
	Data        []byte    `gorm:"not null"`
	CreatedAt   time.Time
}

// DealInput carries the writable fields of a deal. Nil fields are left untouched.
// Dates are strings so JSON and multipart bodies share one parser.
type DealInput struct {
	Title        *string  `json:"title" form:"title" validate:"omitempty,max=255"`
	Description  *string  `json:"description" form:"description"`
	StartDate    *string  `json:"start_date" form:"start_date"`
	EndDate      *string  `json:"end_date" form:"end_date"`
	Price        *float64 `json:"price" form:"price" validate:"omitempty,gte=0"`
	BasePrice    *float64 `json:"base_price" form:"base_price" validate:"omitempty,gte=0"`
	ShippingCost *float64 `json:"shipping_cost" form:"shipping_cost" validate:"omitempty,gte=0"`
	Link         *string  `json:"link" form:"link" validate:"omitempty,max=255"`
	Brand        *string  `json:"brand" form:"brand" validate:"omitempty,max=255"`
	Permanent    *bool    `json:"permanent" form:"permanent"`
	// CreatorID is only honoured when ownership checks are disabled.
	CreatorID *uint `json:"creator_id" form:"creator_id"`
}

var dealTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z07",
	"2006-01-02T15:04:05Z07",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDealTime parses a deal date. An empty string clears the date.
func ParseDealTime(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return nil, nil
	}
	for _, layout := range dealTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognised date %q", s)
}

// Columns converts the supplied fields into a column map for a partial update.
func (in DealInput) Columns() (map[string]any, error) {
	cols := make(map[string]any)
	setString := func(col string, v *string) {
		if v != nil {
			cols[col] = *v
		}
	}
	setFloat := func(col string, v *float64) {
		if v != nil {
			cols[col] = *v
		}
	}
	setString("title", in.Title)
	setString("description", in.Description)
	setString("link", in.Link)
	setString("brand", in.Brand)
	setFloat("price", in.Price)
	setFloat("base_price", in.BasePrice)
	setFloat("shipping_cost", in.ShippingCost)
	if in.Permanent != nil {
		cols["permanent"] = *in.Permanent
	}
	for col, raw := range map[string]*string{"start_date": in.StartDate, "end_date": in.EndDate} {
		if raw == nil {
			continue
		}
		t, err := ParseDealTime(*raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", col, err)
		}
		cols[col] = t
	}
	return cols, nil
}

// ApplyTo copies the supplied fields onto d.
func (in DealInput) ApplyTo(d *Deal) error {
	cols, err := in.Columns()
	if err != nil {
		return err
	}
	for col, v := range cols {
		switch col {
		case "title":
			d.Title = v.(string)
		case "description":
			d.Description = v.(string)
		case "link":
			d.Link = v.(string)
		case "brand":
			d.Brand = v.(string)
		case "price":
			d.Price = v.(float64)
		case "base_price":
			d.BasePrice = v.(float64)
		case "shipping_cost":
			d.ShippingCost = v.(float64)
		case "permanent":
			d.Permanent = v.(bool)
		case "start_date":
			d.StartDate = v.(*time.Time)
		case "end_date":
			d.EndDate = v.(*time.Time)
		}
	}
	return nil
}
