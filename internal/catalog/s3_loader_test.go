package catalog

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLoader is a mock implementation of the Loader interface for testing.
type mockLoader struct {
	loadFunc func(ctx context.Context, path string) (Catalog, error)
}

func (m *mockLoader) Load(ctx context.Context, path string) (Catalog, error) {
	if m.loadFunc != nil {
		return m.loadFunc(ctx, path)
	}
	return nil, errors.New("not implemented")
}

type fakeObjectGetter struct {
	body []byte
	err  error
	keys []string
}

func (f *fakeObjectGetter) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.keys = append(f.keys, aws.ToString(in.Key))
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(f.body))}, nil
}

func TestS3Loader_Load(t *testing.T) {
	getter := &fakeObjectGetter{body: gzipLines(t, packageLines(t, samplePackages())...)}
	loader := NewS3LoaderWithClient(getter, "hostbot-catalog", zerolog.Nop())

	c, err := loader.Load(context.Background(), "catalog/packages.jsonl.gz")
	require.NoError(t, err)
	assert.Equal(t, 3, c.Size())
	assert.Equal(t, []string{"catalog/packages.jsonl.gz"}, getter.keys)
}

func TestS3Loader_LoadError(t *testing.T) {
	getter := &fakeObjectGetter{err: errors.New("NoSuchKey")}
	loader := NewS3LoaderWithClient(getter, "hostbot-catalog", zerolog.Nop())

	_, err := loader.Load(context.Background(), "missing.gz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket=hostbot-catalog")
}

func TestFallbackLoader(t *testing.T) {
	ctx := context.Background()
	s3Catalog := NewMapCatalog(samplePackages()[0])
	localCatalog := NewMapCatalog(samplePackages()[1])

	tests := []struct {
		name      string
		s3        Loader
		s3Enabled bool
		local     Loader
		wantKey   string
		wantErr   bool
	}{
		{
			name: "S3 success",
			s3: &mockLoader{loadFunc: func(ctx context.Context, path string) (Catalog, error) {
				assert.Equal(t, "catalog/packages.jsonl.gz", path, "S3 key should have prefix")
				return s3Catalog, nil
			}},
			s3Enabled: true,
			local: &mockLoader{loadFunc: func(ctx context.Context, path string) (Catalog, error) {
				t.Error("file loader should not be called when S3 succeeds")
				return nil, errors.New("unexpected")
			}},
			wantKey: "A1",
		},
		{
			name: "S3 fails falls back to local",
			s3: &mockLoader{loadFunc: func(ctx context.Context, path string) (Catalog, error) {
				return nil, errors.New("access denied")
			}},
			s3Enabled: true,
			local: &mockLoader{loadFunc: func(ctx context.Context, path string) (Catalog, error) {
				assert.Equal(t, "packages.jsonl.gz", path)
				return localCatalog, nil
			}},
			wantKey: "B2",
		},
		{
			name: "S3 disabled",
			s3: &mockLoader{loadFunc: func(ctx context.Context, path string) (Catalog, error) {
				t.Error("S3 loader should not be called when disabled")
				return nil, errors.New("unexpected")
			}},
			local: &mockLoader{loadFunc: func(ctx context.Context, path string) (Catalog, error) {
				return localCatalog, nil
			}},
			wantKey: "B2",
		},
		{
			name:      "S3 loader nil",
			s3Enabled: true,
			local: &mockLoader{loadFunc: func(ctx context.Context, path string) (Catalog, error) {
				return localCatalog, nil
			}},
			wantKey: "B2",
		},
		{
			name: "Both fail",
			s3: &mockLoader{loadFunc: func(ctx context.Context, path string) (Catalog, error) {
				return nil, errors.New("s3 down")
			}},
			s3Enabled: true,
			local: &mockLoader{loadFunc: func(ctx context.Context, path string) (Catalog, error) {
				return nil, errors.New("no file")
			}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := NewFallbackLoader(tt.s3, tt.local, "catalog/", tt.s3Enabled, zerolog.Nop())
			c, err := loader.Load(ctx, "packages.jsonl.gz")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			_, ok := c.Get(tt.wantKey)
			assert.True(t, ok)
		})
	}
}
