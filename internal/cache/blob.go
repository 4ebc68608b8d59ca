package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/ErikCohenDev/consensus-council-sub001/internal/models"
)

var errBlobNotFound = errors.New("blob not found")

// blobStore is the subset of blob storage the cache needs.
type blobStore interface {
	upload(ctx context.Context, name string, data []byte) error
	// download returns errBlobNotFound for a missing blob.
	download(ctx context.Context, name string) ([]byte, error)
	list(ctx context.Context, prefix string) ([]string, error)
	remove(ctx context.Context, name string) error
}

// BlobCache stores entries as blobs in an Azure Storage container, so several
// machines can share one cache.
type BlobCache struct {
	store  blobStore
	prefix string
	now    func() time.Time
}

// NewBlob creates a cache in container using an existing client. Blob names
// are prefix followed by the key.
func NewBlob(client *azblob.Client, container, prefix string) *BlobCache {
	return newBlobCache(&azureBlobs{client: client, container: container}, prefix)
}

// NewBlobFromURL connects to the storage account at serviceURL with the
// default Azure credential chain.
func NewBlobFromURL(serviceURL, container, prefix string) (*BlobCache, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("creating azure credential: %w", err)
	}
	client, err := azblob.NewClient(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("creating blob client: %w", err)
	}
	return NewBlob(client, container, prefix), nil
}

func newBlobCache(store blobStore, prefix string) *BlobCache {
	return &BlobCache{store: store, prefix: prefix, now: time.Now}
}

func (c *BlobCache) name(key string) string {
	return path.Join(c.prefix, key+fileExt)
}

func (c *BlobCache) Get(ctx context.Context, key string) (*models.AuditResult, bool, error) {
	if !validKey(key) {
		return nil, false, nil
	}
	data, err := c.store.download(ctx, c.name(key))
	if errors.Is(err, errBlobNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("downloading cache blob: %w", err)
	}
	e, err := decode(data)
	if err != nil {
		slog.WarnContext(ctx, "ignoring unreadable cache blob", "key", key, "error", err)
		return nil, false, nil
	}
	if e.expired(c.now()) {
		return nil, false, nil
	}
	return e.Result, true, nil
}

func (c *BlobCache) Set(ctx context.Context, key string, result *models.AuditResult, ttl time.Duration) error {
	if !validKey(key) {
		return fmt.Errorf("invalid cache key %q", key)
	}
	data, err := encode(newEntry(key, result, ttl, c.now()))
	if err != nil {
		return err
	}
	if err := c.store.upload(ctx, c.name(key), data); err != nil {
		return fmt.Errorf("uploading cache blob: %w", err)
	}
	return nil
}

// Clear deletes every cache blob under the prefix. Blobs that are not cache
// entries are left alone.
func (c *BlobCache) Clear(ctx context.Context) error {
	prefix := c.prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	names, err := c.store.list(ctx, prefix)
	if err != nil {
		return fmt.Errorf("listing cache blobs: %w", err)
	}
	var errs []error
	for _, name := range names {
		if !strings.HasSuffix(name, fileExt) {
			continue
		}
		if err := c.store.remove(ctx, name); err != nil && !errors.Is(err, errBlobNotFound) {
			errs = append(errs, fmt.Errorf("deleting %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// azureBlobs adapts an azblob.Client to blobStore.
type azureBlobs struct {
	client    *azblob.Client
	container string
	once      sync.Once
}

func (a *azureBlobs) upload(ctx context.Context, name string, data []byte) error {
	a.once.Do(func() {
		_, err := a.client.CreateContainer(ctx, a.container, nil)
		if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			slog.WarnContext(ctx, "creating cache container", "container", a.container, "error", err)
		}
	})
	_, err := a.client.UploadBuffer(ctx, a.container, name, data, nil)
	return err
}

func (a *azureBlobs) download(ctx context.Context, name string) ([]byte, error) {
	resp, err := a.client.DownloadStream(ctx, a.container, name, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, errBlobNotFound
		}
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (a *azureBlobs) list(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	pager := a.client.NewListBlobsFlatPager(a.container, &azblob.ListBlobsFlatOptions{Prefix: &prefix})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			if isNotFound(err) {
				return names, nil
			}
			return nil, err
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name != nil {
				names = append(names, *item.Name)
			}
		}
	}
	return names, nil
}

func (a *azureBlobs) remove(ctx context.Context, name string) error {
	_, err := a.client.DeleteBlob(ctx, a.container, name, nil)
	if isNotFound(err) {
		return errBlobNotFound
	}
	return err
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		return true
	}
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}
