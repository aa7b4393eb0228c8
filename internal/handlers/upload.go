package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"

	"backend/internal/images"
)

// payloadKey carries the write payload prepared by the upload middleware so
// the generic handlers can consume multipart and JSON requests identically.
const payloadKey = "payload"

const maxMultipartMemory = 32 << 20

// UploadSingleImage accepts a multipart form, stores the image from the
// given file field and rewrites the request into a payload the generic
// handlers understand. JSON requests pass through untouched.
func UploadSingleImage(store *images.Store, entity, field string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isMultipart(c) {
			c.Next()
			return
		}

		payload, err := parseMultipartPayload(c)
		if err != nil {
			respondError(c, errBadRequest("invalid form data"))
			c.Abort()
			return
		}

		file, err := c.FormFile(field)
		if err == nil {
			filename, err := store.Save(file, entity)
			if err != nil {
				respondError(c, errBadRequest("%s", err.Error()))
				c.Abort()
				return
			}
			payload[field] = filename
		} else if !missingFile(err) {
			respondError(c, errBadRequest("invalid image upload"))
			c.Abort()
			return
		}

		c.Set(payloadKey, payload)
		c.Next()
	}
}

// UploadProductImages handles the product mixed upload: one cover image plus
// an optional gallery under the "images" field.
func UploadProductImages(store *images.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isMultipart(c) {
			c.Next()
			return
		}

		payload, err := parseMultipartPayload(c)
		if err != nil {
			respondError(c, errBadRequest("invalid form data"))
			c.Abort()
			return
		}

		if file, err := c.FormFile("imageCover"); err == nil {
			filename, err := store.Save(file, "products")
			if err != nil {
				respondError(c, errBadRequest("%s", err.Error()))
				c.Abort()
				return
			}
			payload["imageCover"] = filename
		} else if !missingFile(err) {
			respondError(c, errBadRequest("invalid image upload"))
			c.Abort()
			return
		}

		if form := c.Request.MultipartForm; form != nil {
			gallery := form.File["images"]
			if len(gallery) > 0 {
				filenames := make([]string, 0, len(gallery))
				for _, file := range gallery {
					filename, err := store.Save(file, "products")
					if err != nil {
						respondError(c, errBadRequest("%s", err.Error()))
						c.Abort()
						return
					}
					filenames = append(filenames, filename)
				}
				payload["images"] = filenames
			}
		}

		c.Set(payloadKey, payload)
		c.Next()
	}
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

func missingFile(err error) bool {
	return errors.Is(err, http.ErrMissingFile) ||
		strings.Contains(err.Error(), "no such file")
}

// parseMultipartPayload copies the text fields of the form into a payload,
// coercing values the way a JSON body would arrive: numbers and booleans
// become typed values, repeated fields become lists.
func parseMultipartPayload(c *gin.Context) (bson.M, error) {
	if err := c.Request.ParseMultipartForm(maxMultipartMemory); err != nil &&
		!errors.Is(err, multipart.ErrMessageTooLarge) {
		return nil, err
	}

	payload := bson.M{}
	if c.Request.MultipartForm == nil {
		return payload, nil
	}
	for field, values := range c.Request.MultipartForm.Value {
		switch len(values) {
		case 0:
		case 1:
			payload[field] = coerceFormValue(values[0])
		default:
			list := make([]interface{}, 0, len(values))
			for _, value := range values {
				list = append(list, coerceFormValue(value))
			}
			payload[field] = list
		}
	}
	return payload, nil
}

func coerceFormValue(raw string) interface{} {
	value := strings.TrimSpace(raw)
	if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
		return parsed
	}
	if parsed, err := strconv.ParseFloat(value, 64); err == nil {
		return parsed
	}
	if parsed, err := strconv.ParseBool(value); err == nil {
		return parsed
	}
	return value
}
