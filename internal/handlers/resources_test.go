package handlers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"backend/internal/config"
	"backend/internal/images"
)

func TestSlugFromDerivesSlug(t *testing.T) {
	payload := bson.M{"name": "Summer Collection 2026"}

	slugFrom("name")(payload)

	if payload["slug"] != "summer-collection-2026" {
		t.Fatalf("unexpected slug: %v", payload["slug"])
	}
}

func TestSlugFromIgnoresMissingField(t *testing.T) {
	payload := bson.M{"price": 10}

	slugFrom("name")(payload)

	if _, ok := payload["slug"]; ok {
		t.Fatal("expected no slug when source field is absent")
	}
}

func TestCastObjectIDsConvertsHexStrings(t *testing.T) {
	id := primitive.NewObjectID()
	payload := bson.M{"category": id.Hex()}

	castObjectIDs("category")(payload)

	if payload["category"] != id {
		t.Fatalf("expected ObjectID %v, got %v", id, payload["category"])
	}
}

func TestCastObjectIDsDropsInvalidHex(t *testing.T) {
	payload := bson.M{"category": "not-a-hex-id"}

	castObjectIDs("category")(payload)

	if _, ok := payload["category"]; ok {
		t.Fatal("expected invalid reference to be dropped")
	}
}

func TestCastObjectIDsHandlesLists(t *testing.T) {
	first, second := primitive.NewObjectID(), primitive.NewObjectID()
	payload := bson.M{"subcategories": []interface{}{first.Hex(), "bad", second.Hex()}}

	castObjectIDs("subcategories")(payload)

	ids, ok := payload["subcategories"].([]primitive.ObjectID)
	if !ok {
		t.Fatalf("expected []primitive.ObjectID, got %T", payload["subcategories"])
	}
	if len(ids) != 2 || ids[0] != first || ids[1] != second {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestCastTimesParsesDateFormats(t *testing.T) {
	payload := bson.M{"expireAt": "2026-12-31"}

	castTimes("expireAt")(payload)

	parsed, ok := payload["expireAt"].(time.Time)
	if !ok {
		t.Fatalf("expected time.Time, got %T", payload["expireAt"])
	}
	if parsed.Year() != 2026 || parsed.Month() != time.December {
		t.Fatalf("unexpected parsed time: %v", parsed)
	}

	payload = bson.M{"expireAt": "2026-12-31T23:59:59Z"}
	castTimes("expireAt")(payload)
	if _, ok := payload["expireAt"].(time.Time); !ok {
		t.Fatalf("expected RFC 3339 value to parse, got %T", payload["expireAt"])
	}
}

func TestCastTimesDropsUnparseableValues(t *testing.T) {
	payload := bson.M{"expireAt": "next tuesday"}

	castTimes("expireAt")(payload)

	if _, ok := payload["expireAt"]; ok {
		t.Fatal("expected unparseable date to be dropped")
	}
}

func TestSanitizePayloadStripsProtectedFields(t *testing.T) {
	payload := bson.M{
		"_id":               "x",
		"id":                "x",
		"password":          "hunter2",
		"passwordChangedAt": "now",
		"createdAt":         "then",
		"name":              "ok",
	}

	sanitizePayload(payload)

	for _, field := range []string{"_id", "id", "password", "passwordChangedAt", "createdAt"} {
		if _, ok := payload[field]; ok {
			t.Fatalf("expected %s to be stripped", field)
		}
	}
	if payload["name"] != "ok" {
		t.Fatal("expected regular fields to survive")
	}
}

func TestPublicImageURLPrefixesBareFilenames(t *testing.T) {
	config.AppEnv.BaseURL = "http://localhost:8080"

	got := publicImageURL("products", "products-abc-123.jpeg")
	want := "http://localhost:8080/uploads/products/products-abc-123.jpeg"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestPublicImageURLPassesThroughAbsoluteAndEmpty(t *testing.T) {
	config.AppEnv.BaseURL = "http://localhost:8080"

	if got := publicImageURL("products", "https://cdn.example.com/a.jpeg"); got != "https://cdn.example.com/a.jpeg" {
		t.Fatalf("expected absolute URL untouched, got %q", got)
	}
	if got := publicImageURL("products", ""); got != "" {
		t.Fatalf("expected empty filename untouched, got %q", got)
	}
}

func TestChainHooksRunsInOrder(t *testing.T) {
	payload := bson.M{"name": "Winter Sale"}

	chainHooks(
		slugFrom("name"),
		func(p bson.M) { p["seen"] = true },
	)(payload)

	if payload["slug"] != "winter-sale" {
		t.Fatalf("expected first hook to run, got %v", payload["slug"])
	}
	if payload["seen"] != true {
		t.Fatal("expected second hook to run")
	}
}

func TestRemoveStoredImageSkipsExternalAndEmptyValues(t *testing.T) {
	// External URLs and empty fields never had a local file; a nil store
	// proves the helper returns before touching the filesystem.
	removeStoredImage(nil, "categories", "")
	removeStoredImage(nil, "categories", "http://cdn.example.com/img.jpeg")
	removeStoredImage(nil, "categories", "https://cdn.example.com/img.jpeg")
}

func TestRemoveStoredImageDeletesLocalFile(t *testing.T) {
	store := images.NewStore(t.TempDir())

	dir := filepath.Join(store.RootDir, "brands")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(dir, "brands-old.jpeg")
	if err := os.WriteFile(target, []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}

	removeStoredImage(store, "brands", "brands-old.jpeg")

	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Fatalf("expected stored image to be removed, got %v", err)
	}
}
