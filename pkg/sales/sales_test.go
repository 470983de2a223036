package sales

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/recordstore/pkg/patricia"
	"github.com/ssargent/recordstore/pkg/store"
)

const sampleCSV = `product_id,product_name,category,discounted_price,actual_price,discount_percentage,rating,rating_count,about_product,user_id,user_name,review_id,review_title,review_content,img_link,product_link
B07JW9H4J1,USB Cable,Computers|Cables,₹399,₹1099,64%,4.2,"24,269",Fast charging,"AG3D6O4STAQKAY2UVGEUV46KN35Q,AHMY5CWJMMK5BJRBBSNLYT3ONILA","Manav,Adarsh gupta","R3HXWT0LRP0NMF,R2AJM3LFTLZHFO","Satisfied,Charging is really fast","Looks durable,Good product",https://img/1.jpg,https://amzn/1
B098NS6PVG,Tablet Stand,Electronics,₹199,₹349,43%,4,,Holds tablets,AECPFYFQVRUWC3KGNLJIOREFP5LQ,Rahuldev,R1ILLQBCQ3TLUI,Nice,Works,https://img/2.jpg,https://amzn/2
`

func TestCSVReader(t *testing.T) {
	r, err := NewCSVReader(strings.NewReader(sampleCSV), nil)
	require.NoError(t, err)

	first, err := r.Read()
	require.NoError(t, err)
	require.Len(t, first, 2)

	assert.Equal(t, "R3HXWT0LRP0NMF", first[0].Review.ID)
	assert.Equal(t, "Satisfied", first[0].Review.Title)
	assert.Equal(t, "Looks durable", first[0].Review.Content)
	assert.Equal(t, "Manav", first[0].User.Name)
	assert.Equal(t, "AG3D6O4STAQKAY2UVGEUV46KN35Q", first[0].User.ID)

	assert.Equal(t, "R2AJM3LFTLZHFO", first[1].Review.ID)
	assert.Equal(t, "Adarsh gupta", first[1].User.Name)

	for _, s := range first {
		assert.Equal(t, "B07JW9H4J1", s.Product.ID)
		assert.Equal(t, int32(24269), s.Product.RatingCount)
		assert.Equal(t, "Computers|Cables", s.Product.Category)
		assert.Equal(t, "₹399", s.Product.DiscountedPrice)
	}

	second, err := r.Read()
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Zero(t, second[0].Product.RatingCount)
	assert.Equal(t, "Rahuldev", second[0].User.Name)

	_, err = r.Read()
	assert.ErrorIs(t, err, io.EOF)
}

func TestCSVReader_Errors(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{"empty input", ""},
		{"missing review column", "product_id,product_name\nB1,x\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCSVReader(strings.NewReader(tc.input), nil)
			assert.ErrorIs(t, err, ErrMissingColumn)
		})
	}

	t.Run("bad rating count", func(t *testing.T) {
		input := strings.Join(Columns, ",") + "\n" +
			"B1,n,c,1,2,3%,4,many,a,u1,name,r1,t,c,i,l\n"
		r, err := NewCSVReader(strings.NewReader(input), nil)
		require.NoError(t, err)
		_, err = r.ReadAll()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "rating_count")
	})
}

func TestCSVReader_UnevenColumns(t *testing.T) {
	input := strings.Join(Columns, ",") + "\n" +
		`B1,n,c,1,2,3%,4,7,a,u1,"alice,bob",r1,"t1,t2",c1,i,l` + "\n"
	r, err := NewCSVReader(strings.NewReader(input), nil)
	require.NoError(t, err)

	all, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "alice", all[0].User.Name)
	assert.Equal(t, "t1", all[0].Review.Title)
}

func TestLookup(t *testing.T) {
	s, ok := Lookup("sale")
	require.True(t, ok)
	assert.Same(t, SaleSchema, s)

	_, ok = Lookup("invoice")
	assert.False(t, ok)

	assert.Equal(t, 30, ReviewSchema.Width())
	assert.Equal(t, 78, ProductSchema.Width())
	assert.Equal(t, 36, UserSchema.Width())
	assert.Equal(t, 12, SaleSchema.Width())
}

func TestSalesRoundTrip(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "sales_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	st, err := store.Open(store.Config{DataDir: tmpDir})
	require.NoError(t, err)
	defer st.Close()

	r, err := NewCSVReader(strings.NewReader(sampleCSV), nil)
	require.NoError(t, err)
	all, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, all, 3)

	require.NoError(t, store.WriteAll(st, SaleBinding, all))

	got, truncated, err := store.ReadAll(st, SaleBinding)
	require.NoError(t, err)
	assert.False(t, truncated)
	assert.Equal(t, all, got)

	names, err := st.Retrieve(UserNamesFile, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Adarsh gupta", "Manav", "Rahuldev"}, names)

	id, err := st.EncodeKey(UserNamesFile, "Manav")
	require.NoError(t, err)
	assert.NotEqual(t, patricia.NotFound, id)

	// every nested type is readable on its own
	users, _, err := store.ReadAll(st, UserBinding)
	require.NoError(t, err)
	assert.Len(t, users, 3)

	products, _, err := store.ReadAll(st, ProductBinding)
	require.NoError(t, err)
	require.Len(t, products, 3)
	assert.Equal(t, "Tablet Stand", products[2].Name)
}
