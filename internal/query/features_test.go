package query

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestFilterRewritesComparisonOperators(t *testing.T) {
	values := url.Values{}
	values.Set("price[gte]", "100")
	values.Set("price[lte]", "500")
	values.Set("ratingsAverage[gt]", "4.5")

	f := New(values).Filter()

	require.Contains(t, f.filter, "price")
	price, ok := f.filter["price"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, int64(100), price["$gte"])
	assert.Equal(t, int64(500), price["$lte"])

	rating, ok := f.filter["ratingsAverage"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, 4.5, rating["$gt"])
}

func TestFilterInOperatorSplitsCommaList(t *testing.T) {
	values := url.Values{}
	values.Set("color[in]", "red,blue, green")

	f := New(values).Filter()

	cond, ok := f.filter["color"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, bson.A{"red", "blue", "green"}, cond["$in"])
}

func TestFilterSkipsReservedKeys(t *testing.T) {
	values := url.Values{}
	values.Set("page", "2")
	values.Set("limit", "10")
	values.Set("sort", "price")
	values.Set("fields", "title")
	values.Set("keyword", "phone")
	values.Set("brand", "acme")

	f := New(values).Filter()

	assert.Equal(t, bson.M{"brand": "acme"}, f.filter)
}

func TestFilterDropsMalformedOperatorKeys(t *testing.T) {
	values := url.Values{}
	values.Set("[gte]", "100")
	values.Set("price[between]", "100")

	f := New(values).Filter()

	assert.Empty(t, f.filter)
}

func TestFilterCoercesEqualityValues(t *testing.T) {
	values := url.Values{}
	values.Set("quantity", "5")
	values.Set("price", "19.99")
	values.Set("featured", "true")
	values.Set("slug", "blue-shirt")

	f := New(values).Filter()

	assert.Equal(t, int64(5), f.filter["quantity"])
	assert.Equal(t, 19.99, f.filter["price"])
	assert.Equal(t, true, f.filter["featured"])
	assert.Equal(t, "blue-shirt", f.filter["slug"])
}

func TestSortDefaultsToNewestFirst(t *testing.T) {
	f := New(url.Values{}).Sort()

	assert.Equal(t, bson.D{{Key: "createdAt", Value: -1}}, f.sort)
}

func TestSortParsesCommaListWithDirections(t *testing.T) {
	values := url.Values{}
	values.Set("sort", "-price, sold")

	f := New(values).Sort()

	assert.Equal(t, bson.D{
		{Key: "price", Value: -1},
		{Key: "sold", Value: 1},
	}, f.sort)
}

func TestLimitFieldsDefaultsToHidingVersionKey(t *testing.T) {
	f := New(url.Values{}).LimitFields()

	assert.Equal(t, bson.M{"__v": 0}, f.projection)
}

func TestLimitFieldsInclusionMode(t *testing.T) {
	values := url.Values{}
	values.Set("fields", "title,price, imageCover")

	f := New(values).LimitFields()

	assert.Equal(t, bson.M{"title": 1, "price": 1, "imageCover": 1}, f.projection)
}

func TestLimitFieldsExclusionMode(t *testing.T) {
	values := url.Values{}
	values.Set("fields", "-description,-images")

	f := New(values).LimitFields()

	assert.Equal(t, bson.M{"description": 0, "images": 0}, f.projection)
}

func TestLimitFieldsFirstEntryDecidesMode(t *testing.T) {
	values := url.Values{}
	values.Set("fields", "title,-description")

	f := New(values).LimitFields()

	// Mixed modes cannot be sent to the database; the exclusion is dropped.
	assert.Equal(t, bson.M{"title": 1}, f.projection)
}

func TestSearchProductMatchesTitleOrDescription(t *testing.T) {
	values := url.Values{}
	values.Set("keyword", "Phone")

	f := New(values).Search("product")

	or, ok := f.search["$or"].(bson.A)
	require.True(t, ok)
	require.Len(t, or, 2)

	title := or[0].(bson.M)["title"].(primitive.Regex)
	assert.Equal(t, "Phone", title.Pattern)
	assert.Equal(t, "i", title.Options)
}

func TestSearchOtherEntitiesMatchName(t *testing.T) {
	values := url.Values{}
	values.Set("keyword", "electronics")

	f := New(values).Search("category")

	regex, ok := f.search["name"].(primitive.Regex)
	require.True(t, ok)
	assert.Equal(t, "electronics", regex.Pattern)
}

func TestSearchEscapesRegexMetacharacters(t *testing.T) {
	values := url.Values{}
	values.Set("keyword", "a.b(c)")

	f := New(values).Search("brand")

	regex := f.search["name"].(primitive.Regex)
	assert.Equal(t, `a\.b\(c\)`, regex.Pattern)
}

func TestPaginateFirstPageOfTwentyThree(t *testing.T) {
	values := url.Values{}
	values.Set("page", "1")
	values.Set("limit", "10")

	f := New(values).Paginate(23)

	assert.Equal(t, int64(1), f.Pagination.CurrentPage)
	assert.Equal(t, int64(3), f.Pagination.NumberOfPages)
	require.NotNil(t, f.Pagination.Next)
	assert.Equal(t, int64(2), *f.Pagination.Next)
	assert.Nil(t, f.Pagination.Prev)
}

func TestPaginateLastPageOfTwentyThree(t *testing.T) {
	values := url.Values{}
	values.Set("page", "3")
	values.Set("limit", "10")

	f := New(values).Paginate(23)

	assert.Nil(t, f.Pagination.Next)
	require.NotNil(t, f.Pagination.Prev)
	assert.Equal(t, int64(2), *f.Pagination.Prev)
	assert.Equal(t, int64(20), f.skip)
	assert.Equal(t, int64(10), f.limit)
}

func TestPaginateDefaultsAndBadInput(t *testing.T) {
	values := url.Values{}
	values.Set("page", "zero")
	values.Set("limit", "-5")

	f := New(values).WithDefaultLimit(SmallLimit).Paginate(12)

	assert.Equal(t, int64(1), f.Pagination.CurrentPage)
	assert.Equal(t, int64(SmallLimit), f.Pagination.Limit)
	assert.Equal(t, int64(3), f.Pagination.NumberOfPages)
}

func TestFilterDocumentMergesBaseFilterAndSearch(t *testing.T) {
	parent := primitive.NewObjectID()
	values := url.Values{}
	values.Set("keyword", "cotton")
	values.Set("price[lt]", "100")

	f := New(values).
		WithBaseFilter(bson.M{"category": parent}).
		Filter().
		Search("subcategory")

	doc := f.FilterDocument()
	assert.Equal(t, parent, doc["category"])
	assert.Contains(t, doc, "price")
	assert.Contains(t, doc, "name")
}

func TestFindOptionsCarriesWindowSortAndProjection(t *testing.T) {
	values := url.Values{}
	values.Set("page", "2")
	values.Set("limit", "5")
	values.Set("sort", "-price")
	values.Set("fields", "title,price")

	f := New(values).Paginate(40).Sort().LimitFields()
	opts := f.FindOptions()

	require.NotNil(t, opts.Skip)
	assert.Equal(t, int64(5), *opts.Skip)
	require.NotNil(t, opts.Limit)
	assert.Equal(t, int64(5), *opts.Limit)
	assert.NotNil(t, opts.Sort)
	assert.NotNil(t, opts.Projection)
}
