package dbmongo

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"revline/internal/common"
)

// Runs against a real MongoDB when MONGO_TEST_URI is set, e.g. mongodb://localhost:27017.
func TestGridFSBucket_Integration(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	defer client.Disconnect(context.Background())

	db := client.Database("revline_test")
	name := "it_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(name))
	require.NoError(t, err)
	defer bucket.Drop()

	store := NewObjectStore(NewGridFSBucket(bucket), name, "http://localhost:8081")

	path := "c1/1714564800000_photo.jpg"
	_, err = store.Upload(ctx, path, "image/jpeg", strings.NewReader("first"))
	require.NoError(t, err)
	_, err = store.Upload(ctx, path, "image/jpeg", strings.NewReader("second revision"))
	require.NoError(t, err)

	obj, err := store.Open(ctx, path)
	require.NoError(t, err)
	defer obj.Body.Close()

	data, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	assert.Equal(t, "second revision", string(data))
	assert.Equal(t, "image/jpeg", obj.ContentType)
	assert.Equal(t, int64(len("second revision")), obj.Size)

	_, err = store.Open(ctx, "c1/nope.jpg")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
