// Package sales is the sample record domain shipped with the store: product
// listings with their reviews and reviewers, stored as a Sale record that
// nests one Review, one Product and one User.
package sales

import (
	"fmt"
	"strings"

	"github.com/ssargent/recordstore/pkg/schema"
)

// Side files shared by the sales schemas
const (
	StringsFile   = "StringsIndex.bin"
	UserNamesFile = "UserNames.bin"
)

// Review is one customer review
type Review struct {
	ID      string
	Title   string
	Content string
}

// Product is a catalog entry as listed at the time of the sale
type Product struct {
	ID                 string
	Name               string
	Category           string
	ImgLink            string
	ProductLink        string
	DiscountedPrice    string
	ActualPrice        string
	DiscountPercentage string
	About              string
	RatingCount        int32
}

// User is the author of a review
type User struct {
	ID   string
	Name string
}

// Sale ties a review to the product and the user who wrote it
type Sale struct {
	Review  Review
	Product Product
	User    User
}

func (s Sale) String() string {
	return fmt.Sprintf("Sale{review=%s product=%s user=%s(%s) title=%q}",
		s.Review.ID, s.Product.ID, s.User.Name, s.User.ID, s.Review.Title)
}

var ReviewSchema = schema.New("Review",
	schema.Inline("review_id", schema.String, 14),
	schema.Range("review_title", schema.String, 8, StringsFile),
	schema.Range("review_content", schema.String, 8, StringsFile),
)

var ProductSchema = schema.New("Product",
	schema.Inline("product_id", schema.String, 10),
	schema.Range("product_name", schema.String, 8, StringsFile),
	schema.Range("category", schema.String, 8, StringsFile),
	schema.Range("img_link", schema.String, 8, StringsFile),
	schema.Range("product_link", schema.String, 8, StringsFile),
	schema.Range("discounted_price", schema.String, 8, StringsFile),
	schema.Range("actual_price", schema.String, 8, StringsFile),
	schema.Range("discount_percentage", schema.String, 8, StringsFile),
	schema.Range("about_product", schema.String, 8, StringsFile),
	schema.Inline("rating_count", schema.Int32, 4),
)

var UserSchema = schema.New("User",
	schema.Inline("user_id", schema.String, 28),
	schema.Trie("user_name", 8, UserNamesFile),
)

var SaleSchema = schema.New("Sale",
	schema.Nested("review", 4, ReviewSchema),
	schema.Nested("product", 4, ProductSchema),
	schema.Nested("user", 4, UserSchema),
)

// Schemas lists every record type of the domain, outermost first
func Schemas() []*schema.Schema {
	return []*schema.Schema{SaleSchema, ReviewSchema, ProductSchema, UserSchema}
}

// Lookup finds a domain schema by its case-insensitive type name.
func Lookup(name string) (*schema.Schema, bool) {
	for _, s := range Schemas() {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return nil, false
}

func (r Review) record() schema.Record {
	return schema.Record{
		"review_id":      r.ID,
		"review_title":   r.Title,
		"review_content": r.Content,
	}
}

func reviewFrom(rec schema.Record) Review {
	return Review{
		ID:      rec.String("review_id"),
		Title:   rec.String("review_title"),
		Content: rec.String("review_content"),
	}
}

func (p Product) record() schema.Record {
	return schema.Record{
		"product_id":          p.ID,
		"product_name":        p.Name,
		"category":            p.Category,
		"img_link":            p.ImgLink,
		"product_link":        p.ProductLink,
		"discounted_price":    p.DiscountedPrice,
		"actual_price":        p.ActualPrice,
		"discount_percentage": p.DiscountPercentage,
		"about_product":       p.About,
		"rating_count":        p.RatingCount,
	}
}

func productFrom(rec schema.Record) (Product, error) {
	p := Product{
		ID:                 rec.String("product_id"),
		Name:               rec.String("product_name"),
		Category:           rec.String("category"),
		ImgLink:            rec.String("img_link"),
		ProductLink:        rec.String("product_link"),
		DiscountedPrice:    rec.String("discounted_price"),
		ActualPrice:        rec.String("actual_price"),
		DiscountPercentage: rec.String("discount_percentage"),
		About:              rec.String("about_product"),
	}
	if v, ok := rec["rating_count"]; ok {
		n, ok := v.(int32)
		if !ok {
			return Product{}, fmt.Errorf("rating_count: unexpected %T", v)
		}
		p.RatingCount = n
	}
	return p, nil
}

func (u User) record() schema.Record {
	return schema.Record{"user_id": u.ID, "user_name": u.Name}
}

func userFrom(rec schema.Record) User {
	return User{ID: rec.String("user_id"), Name: rec.String("user_name")}
}

// SaleBinding maps Sale values onto SaleSchema records
var SaleBinding = schema.Binding[Sale]{
	Schema: SaleSchema,
	Flatten: func(s Sale) (schema.Record, error) {
		return schema.Record{
			"review":  s.Review.record(),
			"product": s.Product.record(),
			"user":    s.User.record(),
		}, nil
	},
	Build: func(rec schema.Record) (Sale, error) {
		product, err := productFrom(rec.Nested("product"))
		if err != nil {
			return Sale{}, fmt.Errorf("product: %w", err)
		}
		return Sale{
			Review:  reviewFrom(rec.Nested("review")),
			Product: product,
			User:    userFrom(rec.Nested("user")),
		}, nil
	},
}

// UserBinding stores users on their own, outside any sale
var UserBinding = schema.Binding[User]{
	Schema: UserSchema,
	Flatten: func(u User) (schema.Record, error) {
		return u.record(), nil
	},
	Build: func(rec schema.Record) (User, error) {
		return userFrom(rec), nil
	},
}

// ProductBinding stores products on their own, outside any sale
var ProductBinding = schema.Binding[Product]{
	Schema: ProductSchema,
	Flatten: func(p Product) (schema.Record, error) {
		return p.record(), nil
	},
	Build: productFrom,
}
