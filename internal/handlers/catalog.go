package handlers

import (
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"backend/internal/images"
	"backend/internal/models"
)

// Catalog resources ride entirely on the generic handlers; only the nested
// routes add a mandatory pre-filter.

func GetCategories(db *mongo.Database) gin.HandlerFunc   { return GetAll(db, categoryResource()) }
func GetCategoryByID(db *mongo.Database) gin.HandlerFunc { return GetOne(db, categoryResource()) }
func CreateCategory(db *mongo.Database) gin.HandlerFunc  { return CreateOne(db, categoryResource()) }
func UpdateCategory(db *mongo.Database) gin.HandlerFunc  { return UpdateOne(db, categoryResource()) }
func DeleteCategory(db *mongo.Database, store *images.Store) gin.HandlerFunc {
	r := categoryResource()
	r.AfterDelete = func(doc *models.Category) { removeStoredImage(store, "categories", doc.Image) }
	return DeleteOne(db, r)
}

func GetBrands(db *mongo.Database) gin.HandlerFunc    { return GetAll(db, brandResource()) }
func GetBrandByID(db *mongo.Database) gin.HandlerFunc { return GetOne(db, brandResource()) }
func CreateBrand(db *mongo.Database) gin.HandlerFunc  { return CreateOne(db, brandResource()) }
func UpdateBrand(db *mongo.Database) gin.HandlerFunc  { return UpdateOne(db, brandResource()) }
func DeleteBrand(db *mongo.Database, store *images.Store) gin.HandlerFunc {
	r := brandResource()
	r.AfterDelete = func(doc *models.Brand) { removeStoredImage(store, "brands", doc.Image) }
	return DeleteOne(db, r)
}

func GetCoupons(db *mongo.Database) gin.HandlerFunc    { return GetAll(db, couponResource()) }
func GetCouponByID(db *mongo.Database) gin.HandlerFunc { return GetOne(db, couponResource()) }
func CreateCoupon(db *mongo.Database) gin.HandlerFunc  { return CreateOne(db, couponResource()) }
func UpdateCoupon(db *mongo.Database) gin.HandlerFunc  { return UpdateOne(db, couponResource()) }
func DeleteCoupon(db *mongo.Database) gin.HandlerFunc  { return DeleteOne(db, couponResource()) }

func GetProducts(db *mongo.Database) gin.HandlerFunc    { return GetAll(db, productResource()) }
func GetProductByID(db *mongo.Database) gin.HandlerFunc { return GetOne(db, productResource()) }
func CreateProduct(db *mongo.Database) gin.HandlerFunc  { return CreateOne(db, productResource()) }
func UpdateProduct(db *mongo.Database) gin.HandlerFunc  { return UpdateOne(db, productResource()) }
func DeleteProduct(db *mongo.Database, store *images.Store) gin.HandlerFunc {
	r := productResource()
	r.AfterDelete = func(doc *models.Product) {
		removeStoredImage(store, "products", doc.ImageCover)
		for _, image := range doc.Images {
			removeStoredImage(store, "products", image)
		}
	}
	return DeleteOne(db, r)
}

// parentFilter scopes a nested listing to the parent resource in the URL,
// e.g. GET /categories/:id/subcategories.
func parentFilter(field string) PreFilter {
	return func(c *gin.Context) (bson.M, error) {
		if c.Param("id") == "" {
			return bson.M{}, nil
		}
		id, err := objectIDParam(c, "id")
		if err != nil {
			return nil, err
		}
		return bson.M{field: id}, nil
	}
}

func GetSubCategories(db *mongo.Database) gin.HandlerFunc {
	return GetAll(db, subCategoryResource())
}

func GetSubCategoriesByCategory(db *mongo.Database) gin.HandlerFunc {
	return GetAll(db, subCategoryResource(), parentFilter("category"))
}

func GetSubCategoryByID(db *mongo.Database) gin.HandlerFunc {
	return GetOne(db, subCategoryResource())
}

func CreateSubCategory(db *mongo.Database) gin.HandlerFunc {
	return CreateOne(db, subCategoryResource())
}

func UpdateSubCategory(db *mongo.Database) gin.HandlerFunc {
	return UpdateOne(db, subCategoryResource())
}

func DeleteSubCategory(db *mongo.Database) gin.HandlerFunc {
	return DeleteOne(db, subCategoryResource())
}
