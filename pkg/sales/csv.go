package sales

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Columns of the sales export. The review and user columns hold
// comma-separated lists, one entry per review of the product.
var Columns = []string{
	"product_id", "product_name", "category", "discounted_price", "actual_price",
	"discount_percentage", "rating", "rating_count", "about_product",
	"user_id", "user_name", "review_id", "review_title", "review_content",
	"img_link", "product_link",
}

// required columns; rating is part of the export but not stored
var required = []string{
	"product_id", "product_name", "category", "discounted_price", "actual_price",
	"discount_percentage", "rating_count", "about_product",
	"user_id", "user_name", "review_id", "review_title", "review_content",
	"img_link", "product_link",
}

// ErrMissingColumn reports a header without one of the required columns
var ErrMissingColumn = errors.New("missing column")

// CSVReader turns rows of a sales export into Sale values. Each row describes
// one product and the reviews left on it; the reader yields one sale per review.
type CSVReader struct {
	r      *csv.Reader
	cols   map[string]int
	row    int
	logger *zap.SugaredLogger
}

// NewCSVReader reads the header row and checks the required columns are present.
func NewCSVReader(r io.Reader, logger *zap.Logger) (*CSVReader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty input", ErrMissingColumn)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}

	return &CSVReader{r: cr, cols: cols, row: 1, logger: logger.Sugar()}, nil
}

// Read returns the sales of the next row, or io.EOF after the last one.
func (c *CSVReader) Read() ([]Sale, error) {
	fields, err := c.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("row %d: %w", c.row+1, err)
	}
	c.row++
	return c.parse(fields)
}

// ReadAll drains the input
func (c *CSVReader) ReadAll() ([]Sale, error) {
	var all []Sale
	for {
		batch, err := c.Read()
		if errors.Is(err, io.EOF) {
			return all, nil
		}
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
	}
}

func (c *CSVReader) parse(fields []string) ([]Sale, error) {
	get := func(name string) string {
		i := c.cols[name]
		if i >= len(fields) {
			return ""
		}
		return fields[i]
	}

	ratingCount, err := parseCount(get("rating_count"))
	if err != nil {
		return nil, fmt.Errorf("row %d: rating_count: %w", c.row, err)
	}
	product := Product{
		ID:                 get("product_id"),
		Name:               get("product_name"),
		Category:           get("category"),
		ImgLink:            get("img_link"),
		ProductLink:        get("product_link"),
		DiscountedPrice:    get("discounted_price"),
		ActualPrice:        get("actual_price"),
		DiscountPercentage: get("discount_percentage"),
		About:              get("about_product"),
		RatingCount:        ratingCount,
	}

	reviewIDs := split(get("review_id"))
	titles := split(get("review_title"))
	contents := split(get("review_content"))
	userIDs := split(get("user_id"))
	userNames := split(get("user_name"))

	if len(titles) != len(reviewIDs) || len(userIDs) != len(reviewIDs) || len(userNames) != len(reviewIDs) {
		c.logger.Debugw("review columns differ in length", "row", c.row, "product", product.ID,
			"reviews", len(reviewIDs), "titles", len(titles), "users", len(userIDs), "names", len(userNames))
	}

	sales := make([]Sale, 0, len(reviewIDs))
	for i, id := range reviewIDs {
		sales = append(sales, Sale{
			Review: Review{
				ID:      id,
				Title:   at(titles, i),
				Content: at(contents, i),
			},
			Product: product,
			User: User{
				ID:   at(userIDs, i),
				Name: at(userNames, i),
			},
		})
	}
	return sales, nil
}

// parseCount reads a count such as "24,269"; an empty cell is zero.
func parseCount(s string) (int32, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return int32(n), nil
}

func split(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func at(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}
