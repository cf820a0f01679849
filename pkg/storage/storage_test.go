package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		conf     Conf
		provider string
		wantErr  bool
	}{
		{name: "default is local", conf: Conf{Local: LocalConf{Path: "/tmp"}}, provider: StorageLocal},
		{name: "local needs path", conf: Conf{Provider: "local"}, wantErr: true},
		{name: "minio", conf: Conf{Provider: "MINIO", S3: S3Conf{Endpoint: "127.0.0.1:9000", Bucket: "b"}}, provider: StorageMinio},
		{name: "s3", conf: Conf{Provider: "s3", S3: S3Conf{Endpoint: "127.0.0.1:9000", Bucket: "b"}}, provider: StorageS3},
		{name: "s3 needs bucket", conf: Conf{Provider: "s3", S3: S3Conf{Endpoint: "x"}}, wantErr: true},
		{name: "unknown", conf: Conf{Provider: "tape"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.conf)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.provider, p.Provider())
		})
	}

	_, err := New(Conf{Provider: "tape"})
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}

func TestLocalProber(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	p, err := New(Conf{Local: LocalConf{Path: dir}})
	require.NoError(t, err)
	require.NoError(t, p.Probe(ctx))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	missing, err := New(Conf{Local: LocalConf{Path: filepath.Join(dir, "nope")}})
	require.NoError(t, err)
	assert.Error(t, missing.Probe(ctx))

	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	notDir, err := New(Conf{Local: LocalConf{Path: file}})
	require.NoError(t, err)
	assert.Error(t, notDir.Probe(ctx))
}

// bucketServer answers bucket-level requests for one bucket the way an S3 endpoint would.
func bucketServer(t *testing.T, bucket string) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Trim(r.URL.Path, "/") == bucket {
			if r.URL.Query().Has("location") {
				w.Header().Set("Content-Type", "application/xml")
				_, _ = w.Write([]byte(`<LocationConstraint xmlns="http://s3.amazonaws.com/doc/2006-03-01/">us-east-1</LocationConstraint>`))
				return
			}
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusNotFound)
		if r.Method != http.MethodHead {
			_, _ = w.Write([]byte(`<Error><Code>NoSuchBucket</Code><Message>missing</Message></Error>`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBucketProbers(t *testing.T) {
	srv := bucketServer(t, "assets")
	endpoint := strings.TrimPrefix(srv.URL, "http://")

	for _, provider := range []string{StorageMinio, StorageS3} {
		t.Run(provider, func(t *testing.T) {
			ok, err := New(Conf{Provider: provider, S3: S3Conf{
				Endpoint: endpoint, Bucket: "assets", Region: "us-east-1", AccessKey: "k", SecretKey: "s",
			}})
			require.NoError(t, err)
			assert.Equal(t, "assets", ok.Location())
			assert.NoError(t, ok.Probe(context.Background()))

			missing, err := New(Conf{Provider: provider, S3: S3Conf{
				Endpoint: endpoint, Bucket: "other", Region: "us-east-1", AccessKey: "k", SecretKey: "s",
			}})
			require.NoError(t, err)
			assert.Error(t, missing.Probe(context.Background()))
		})
	}
}
