package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"backend/internal/query"
)

// Lookup expands a referenced document (or list of references) in place,
// mirroring the read-time population the entity schemas rely on.
type Lookup struct {
	From       string   // referenced collection
	LocalField string   // field holding the ObjectID(s)
	Projection []string // fields to keep from the referenced document
}

// Resource describes one entity for the generic handlers: where it lives,
// how it is named in error messages, and its lifecycle hooks.
type Resource[T any] struct {
	Collection   string
	Name         string
	SearchEntity string   // picks keyword-search fields; empty means name-only
	DefaultLimit int64    // page size when the client sends none
	Required     []string // payload fields that must be present on create
	BeforeSave   func(payload bson.M)
	AfterLoad    func(doc *T)
	// AfterDelete runs on the removed document as stored (AfterLoad does
	// not apply), so entities can release owned files.
	AfterDelete func(doc *T)
	Lookups     []Lookup
}

// PreFilter produces a mandatory filter for nested routes, e.g. scoping
// subcategories to the parent category in the URL.
type PreFilter func(c *gin.Context) (bson.M, error)

func resolvePreFilter(c *gin.Context, preFilters []PreFilter) (bson.M, error) {
	base := bson.M{}
	for _, pre := range preFilters {
		filter, err := pre(c)
		if err != nil {
			return nil, err
		}
		for k, v := range filter {
			base[k] = v
		}
	}
	return base, nil
}

// GetAll lists documents through the query feature pipeline. The page-count
// denominator is the count under the mandatory pre-filter only (see
// query.Features.Paginate).
func GetAll[T any](db *mongo.Database, r Resource[T], preFilters ...PreFilter) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := fmt.Sprintf("GET %ss", r.Collection)
		defer handlePanic(c, route)

		base, err := resolvePreFilter(c, preFilters)
		if err != nil {
			respondError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		total, err := db.Collection(r.Collection).CountDocuments(ctx, base)
		if err != nil {
			respondError(c, errInternal("db error", err))
			return
		}

		features := query.New(c.Request.URL.Query()).
			WithBaseFilter(base).
			WithDefaultLimit(r.DefaultLimit).
			Paginate(total).
			Filter().
			Search(r.SearchEntity).
			LimitFields().
			Sort()

		cursor, err := db.Collection(r.Collection).Find(ctx, features.FilterDocument(), features.FindOptions())
		if err != nil {
			respondError(c, errInternal("db error", err))
			return
		}
		defer cursor.Close(ctx)

		docs := make([]T, 0)
		if err := cursor.All(ctx, &docs); err != nil {
			respondError(c, errInternal("decode error", err))
			return
		}
		if r.AfterLoad != nil {
			for i := range docs {
				r.AfterLoad(&docs[i])
			}
		}

		log.Printf("[%s] returning %d documents", route, len(docs))
		c.JSON(http.StatusOK, gin.H{
			"results":          len(docs),
			"paginationResult": features.Pagination,
			"data":             docs,
		})
	}
}

// GetOne fetches a document by id under any mandatory pre-filter, expanding
// configured lookups.
func GetOne[T any](db *mongo.Database, r Resource[T], preFilters ...PreFilter) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := fmt.Sprintf("GET %s", r.Collection)
		defer handlePanic(c, route)

		id, err := objectIDParam(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}

		base, err := resolvePreFilter(c, preFilters)
		if err != nil {
			respondError(c, err)
			return
		}
		base["_id"] = id

		ctx, cancel := requestContext(c)
		defer cancel()

		var doc T
		if err := db.Collection(r.Collection).FindOne(ctx, base).Decode(&doc); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				respondError(c, errNotFound("%s not found", r.Name))
				return
			}
			respondError(c, errInternal("db error", err))
			return
		}
		if r.AfterLoad != nil {
			r.AfterLoad(&doc)
		}

		if len(r.Lookups) == 0 {
			c.JSON(http.StatusOK, gin.H{"data": doc})
			return
		}

		populated, err := populateDocument(ctx, db, doc, r.Lookups)
		if err != nil {
			respondError(c, errInternal("db error", err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": populated})
	}
}

// CreateOne inserts the payload as a new document and returns it. Entity
// hooks (slug derivation, image naming) run through BeforeSave; uploaded
// image fields arrive via the upload middleware's payload.
func CreateOne[T any](db *mongo.Database, r Resource[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := fmt.Sprintf("POST %s", r.Collection)
		defer handlePanic(c, route)

		payload, err := bindPayload(c)
		if err != nil {
			respondError(c, err)
			return
		}
		for _, field := range r.Required {
			if _, ok := payload[field]; !ok {
				respondError(c, errBadRequest("%s is required", field))
				return
			}
		}

		sanitizePayload(payload)
		now := time.Now()
		payload["createdAt"] = now
		payload["updatedAt"] = now
		if r.BeforeSave != nil {
			r.BeforeSave(payload)
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		res, err := db.Collection(r.Collection).InsertOne(ctx, payload)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				respondError(c, errBadRequest("%s already exists", r.Name))
				return
			}
			respondError(c, errInternal("db error", err))
			return
		}

		var doc T
		if err := db.Collection(r.Collection).FindOne(ctx, bson.M{"_id": res.InsertedID}).Decode(&doc); err != nil {
			respondError(c, errInternal("db error", err))
			return
		}
		if r.AfterLoad != nil {
			r.AfterLoad(&doc)
		}

		log.Printf("[%s] created %v", route, res.InsertedID)
		c.JSON(http.StatusCreated, gin.H{
			"data":    doc,
			"message": fmt.Sprintf("%s created successfully", r.Name),
		})
	}
}

// UpdateOne applies a partial update. The password field can never travel
// through this generic path.
func UpdateOne[T any](db *mongo.Database, r Resource[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := fmt.Sprintf("PUT %s", r.Collection)
		defer handlePanic(c, route)

		id, err := objectIDParam(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}

		payload, err := bindPayload(c)
		if err != nil {
			respondError(c, err)
			return
		}

		sanitizePayload(payload)
		payload["updatedAt"] = time.Now()
		if r.BeforeSave != nil {
			r.BeforeSave(payload)
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		var doc T
		err = db.Collection(r.Collection).FindOneAndUpdate(
			ctx,
			bson.M{"_id": id},
			bson.M{"$set": payload},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&doc)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				respondError(c, errNotFound("%s not found", r.Name))
				return
			}
			respondError(c, errInternal("db error", err))
			return
		}
		if r.AfterLoad != nil {
			r.AfterLoad(&doc)
		}

		log.Printf("[%s] updated %s", route, id.Hex())
		c.JSON(http.StatusOK, gin.H{
			"data":    doc,
			"message": fmt.Sprintf("%s updated successfully", r.Name),
		})
	}
}

// DeleteOne removes a document by id; success carries no body.
func DeleteOne[T any](db *mongo.Database, r Resource[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := fmt.Sprintf("DELETE %s", r.Collection)
		defer handlePanic(c, route)

		id, err := objectIDParam(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		var doc T
		err = db.Collection(r.Collection).FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondError(c, errNotFound("%s not found", r.Name))
			return
		}
		if err != nil {
			respondError(c, errInternal("db error", err))
			return
		}
		if r.AfterDelete != nil {
			r.AfterDelete(&doc)
		}

		log.Printf("[%s] deleted %s", route, id.Hex())
		c.Status(http.StatusNoContent)
	}
}

// bindPayload prefers a payload prepared by the upload middleware (multipart
// requests) over the JSON body.
func bindPayload(c *gin.Context) (bson.M, error) {
	if prepared, exists := c.Get(payloadKey); exists {
		if payload, ok := prepared.(bson.M); ok {
			return payload, nil
		}
	}

	payload := bson.M{}
	if err := c.ShouldBindJSON(&payload); err != nil {
		return nil, errBadRequest("invalid request body")
	}
	return payload, nil
}

// sanitizePayload strips fields clients must not set through generic writes.
func sanitizePayload(payload bson.M) {
	delete(payload, "_id")
	delete(payload, "id")
	delete(payload, "password")
	delete(payload, "passwordChangedAt")
	delete(payload, "createdAt")
}

// populateDocument replaces reference fields with the referenced documents,
// like the schemas' read-time population.
func populateDocument[T any](ctx context.Context, db *mongo.Database, doc T, lookups []Lookup) (bson.M, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out bson.M
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, err
	}

	for _, lookup := range lookups {
		value, ok := out[lookup.LocalField]
		if !ok || value == nil {
			continue
		}

		projection := bson.M{}
		for _, field := range lookup.Projection {
			projection[field] = 1
		}
		opts := options.Find()
		if len(projection) > 0 {
			opts.SetProjection(projection)
		}

		var filter bson.M
		switch ref := value.(type) {
		case primitive.ObjectID:
			filter = bson.M{"_id": ref}
		case primitive.A:
			filter = bson.M{"_id": bson.M{"$in": ref}}
		default:
			continue
		}

		cursor, err := db.Collection(lookup.From).Find(ctx, filter, opts)
		if err != nil {
			return nil, err
		}
		refs := make([]bson.M, 0)
		if err := cursor.All(ctx, &refs); err != nil {
			return nil, err
		}

		if _, isList := value.(primitive.A); isList {
			out[lookup.LocalField] = refs
		} else if len(refs) > 0 {
			out[lookup.LocalField] = refs[0]
		}
	}

	return out, nil
}
