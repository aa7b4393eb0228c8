package handlers

import (
	"log"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"backend/internal/config"
	"backend/internal/images"
	"backend/internal/models"
	"backend/internal/query"
)

// publicImageURL derives the externally reachable URL for a stored image
// filename. Already-absolute values pass through untouched, so documents can
// be re-serialized safely.
func publicImageURL(entity, filename string) string {
	if filename == "" || strings.HasPrefix(filename, "http://") || strings.HasPrefix(filename, "https://") {
		return filename
	}
	return config.AppEnv.BaseURL + "/uploads/" + entity + "/" + filename
}

// removeStoredImage drops a stored image file once its owning document is
// gone. External URLs were never stored locally, and a failed removal only
// leaves an orphan on disk, so it is logged and not surfaced.
func removeStoredImage(store *images.Store, entity, filename string) {
	if filename == "" || strings.HasPrefix(filename, "http://") || strings.HasPrefix(filename, "https://") {
		return
	}
	if err := store.Delete(entity, filename); err != nil {
		log.Printf("[UPLOAD] [ERROR] failed to remove %s/%s: %v", entity, filename, err)
	}
}

// slugFrom writes payload["slug"] from the given source field when present.
func slugFrom(field string) func(payload bson.M) {
	return func(payload bson.M) {
		if value, ok := payload[field].(string); ok && strings.TrimSpace(value) != "" {
			payload["slug"] = slug.Make(value)
		}
	}
}

func chainHooks(hooks ...func(bson.M)) func(bson.M) {
	return func(payload bson.M) {
		for _, hook := range hooks {
			hook(payload)
		}
	}
}

// castObjectIDs converts hex-string reference fields (and lists of them)
// into ObjectIDs so they persist as real references. Invalid values are
// dropped rather than stored as strings.
func castObjectIDs(fields ...string) func(bson.M) {
	return func(payload bson.M) {
		for _, field := range fields {
			switch value := payload[field].(type) {
			case string:
				if id, err := primitive.ObjectIDFromHex(value); err == nil {
					payload[field] = id
				} else {
					delete(payload, field)
				}
			case []interface{}:
				ids := make([]primitive.ObjectID, 0, len(value))
				for _, entry := range value {
					if hex, ok := entry.(string); ok {
						if id, err := primitive.ObjectIDFromHex(hex); err == nil {
							ids = append(ids, id)
						}
					}
				}
				payload[field] = ids
			}
		}
	}
}

// castTimes parses RFC 3339 (or date-only) string fields into time values.
func castTimes(fields ...string) func(bson.M) {
	return func(payload bson.M) {
		for _, field := range fields {
			raw, ok := payload[field].(string)
			if !ok {
				continue
			}
			if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
				payload[field] = parsed
			} else if parsed, err := time.Parse("2006-01-02", raw); err == nil {
				payload[field] = parsed
			} else {
				delete(payload, field)
			}
		}
	}
}

func categoryResource() Resource[models.Category] {
	return Resource[models.Category]{
		Collection:   "categories",
		Name:         "Category",
		DefaultLimit: query.SmallLimit,
		Required:     []string{"name"},
		BeforeSave:   slugFrom("name"),
		AfterLoad: func(doc *models.Category) {
			doc.Image = publicImageURL("categories", doc.Image)
		},
	}
}

func subCategoryResource() Resource[models.SubCategory] {
	return Resource[models.SubCategory]{
		Collection:   "subcategories",
		Name:         "SubCategory",
		DefaultLimit: query.SmallLimit,
		Required:     []string{"name", "category"},
		BeforeSave:   chainHooks(slugFrom("name"), castObjectIDs("category")),
		Lookups: []Lookup{
			{From: "categories", LocalField: "category", Projection: []string{"name", "slug"}},
		},
	}
}

func brandResource() Resource[models.Brand] {
	return Resource[models.Brand]{
		Collection:   "brands",
		Name:         "Brand",
		DefaultLimit: query.SmallLimit,
		Required:     []string{"name"},
		BeforeSave:   slugFrom("name"),
		AfterLoad: func(doc *models.Brand) {
			doc.Image = publicImageURL("brands", doc.Image)
		},
	}
}

func productResource() Resource[models.Product] {
	return Resource[models.Product]{
		Collection:   "products",
		Name:         "Product",
		SearchEntity: "product",
		DefaultLimit: query.DefaultLimit,
		Required:     []string{"title", "description", "quantity", "price", "category"},
		BeforeSave:   chainHooks(slugFrom("title"), castObjectIDs("category", "subcategories", "brand")),
		AfterLoad: func(doc *models.Product) {
			doc.ImageCover = publicImageURL("products", doc.ImageCover)
			for i, image := range doc.Images {
				doc.Images[i] = publicImageURL("products", image)
			}
		},
		Lookups: []Lookup{
			{From: "categories", LocalField: "category", Projection: []string{"name", "slug"}},
		},
	}
}

func couponResource() Resource[models.Coupon] {
	return Resource[models.Coupon]{
		Collection:   "coupons",
		Name:         "Coupon",
		DefaultLimit: query.SmallLimit,
		Required:     []string{"name", "discount", "expireAt"},
		BeforeSave: chainHooks(
			func(payload bson.M) {
				if name, ok := payload["name"].(string); ok {
					payload["name"] = strings.ToUpper(strings.TrimSpace(name))
				}
			},
			castTimes("expireAt"),
		),
	}
}

func userResource() Resource[models.User] {
	return Resource[models.User]{
		Collection:   "users",
		Name:         "User",
		DefaultLimit: query.DefaultLimit,
		BeforeSave:   slugFrom("name"),
		AfterLoad: func(doc *models.User) {
			doc.ProfileImg = publicImageURL("users", doc.ProfileImg)
		},
	}
}

func reviewResource() Resource[models.Review] {
	return Resource[models.Review]{
		Collection:   "reviews",
		Name:         "Review",
		DefaultLimit: query.DefaultLimit,
		Lookups: []Lookup{
			{From: "users", LocalField: "user", Projection: []string{"name", "profileImg"}},
		},
	}
}

func orderResource() Resource[models.Order] {
	return Resource[models.Order]{
		Collection:   "orders",
		Name:         "Order",
		DefaultLimit: query.DefaultLimit,
		Lookups: []Lookup{
			{From: "users", LocalField: "user", Projection: []string{"name", "profileImg", "email", "phone"}},
		},
	}
}
