package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/stash"
	"github.com/hupe1980/stash/resource"
	"github.com/hupe1980/stash/storagetest"
)

// MockS3Client is a testify mock of Client.
type MockS3Client struct {
	mock.Mock
}

func (m *MockS3Client) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.HeadBucketOutput), args.Error(1)
}

func (m *MockS3Client) CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.CreateBucketOutput), args.Error(1)
}

func (m *MockS3Client) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.HeadObjectOutput), args.Error(1)
}

func (m *MockS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.GetObjectOutput), args.Error(1)
}

func (m *MockS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.PutObjectOutput), args.Error(1)
}

func (m *MockS3Client) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.DeleteObjectOutput), args.Error(1)
}

func (m *MockS3Client) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.ListObjectsV2Output), args.Error(1)
}

func newFakeService(t *testing.T, cfg Config, optFns ...Option) (*Service, *fakeClient) {
	t.Helper()
	client := newFakeClient()
	svc, err := NewWithClient(client, cfg, optFns...)
	require.NoError(t, err)
	return svc, client
}

func TestConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) stash.Service {
		svc, _ := newFakeService(t, Config{Bucket: "conformance"})
		return svc
	}, storagetest.Options{})
}

func TestConformance_Prefix(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) stash.Service {
		svc, _ := newFakeService(t, Config{Bucket: "conformance", Prefix: "tenant-a/"})
		return svc
	}, storagetest.Options{})
}

func TestConformance_HeadGuard(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) stash.Service {
		svc, _ := newFakeService(t, Config{Bucket: "conformance", DisableConditionalWrites: true})
		return svc
	}, storagetest.Options{})
}

func TestConfig_Validate(t *testing.T) {
	assert.True(t, stash.IsKind(Config{}.Validate(), stash.KindInvalidInput))
	assert.Error(t, Config{Bucket: "b", AccessKeyID: "id"}.Validate())
	assert.NoError(t, Config{Bucket: "b", AccessKeyID: "id", SecretAccessKey: "secret"}.Validate())
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{Bucket: "b"}.withDefaults()
	assert.Equal(t, DefaultRegion, cfg.Region)
	assert.Equal(t, DefaultAppName, cfg.AppName)
	assert.Equal(t, "private", cfg.DefaultBucketACL)

	var o s3.Options
	Config{Endpoint: "http://localhost:4566", UsePathStyle: true}.clientOptions(&o)
	assert.Equal(t, "http://localhost:4566", aws.ToString(o.BaseEndpoint))
	assert.True(t, o.UsePathStyle)
}

func TestConfig_LoadAWSConfig(t *testing.T) {
	cfg := Config{Bucket: "b", Region: "eu-central-1", AccessKeyID: "AKID", SecretAccessKey: "SECRET"}
	awsCfg, err := cfg.LoadAWSConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "eu-central-1", awsCfg.Region)
	assert.Equal(t, DefaultAppName, awsCfg.AppID)

	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKID", creds.AccessKeyID)
}

func TestService_Key(t *testing.T) {
	svc, _ := newFakeService(t, Config{Bucket: "b", Prefix: "tenant/"})

	tests := []struct {
		in, want string
	}{
		{"", "tenant"},
		{"a.txt", "tenant/a.txt"},
		{"./a.txt", "tenant/a.txt"},
		{"~/weow/fluff.txt", "tenant/weow/fluff.txt"},
		{"s3://b/x/y.txt", "tenant/x/y.txt"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, svc.key(tt.in), tt.in)
	}

	plain, _ := newFakeService(t, Config{Bucket: "b"})
	assert.Equal(t, "", plain.key(""))
	assert.Equal(t, "", plain.key("./"))
	assert.Equal(t, "a/b", plain.key("/a/b"))
}

func TestService_Hierarchy(t *testing.T) {
	ctx := context.Background()
	svc, _ := newFakeService(t, Config{Bucket: "b"})
	require.NoError(t, svc.Init(ctx))

	for _, p := range []string{"top.txt", "dir/one.txt", "dir/two.json", "dir/sub/three.txt", "other/four.txt"} {
		require.NoError(t, svc.Upload(ctx, p, stash.NewUploadRequest([]byte("x"))))
	}

	blobs, err := svc.Blobs(ctx, "", stash.NewListBlobsRequest().WithIncludeDirs(true))
	require.NoError(t, err)
	require.Len(t, blobs, 3)
	assert.Equal(t, "s3://b/dir", blobs[0].BlobPath())
	assert.Equal(t, "s3://b/other", blobs[1].BlobPath())
	assert.Equal(t, "s3://b/top.txt", blobs[2].BlobPath())

	blobs, err = svc.Blobs(ctx, "dir", stash.NewListBlobsRequest().WithIncludeDirs(true).ExcludeDir("sub"))
	require.NoError(t, err)
	require.Len(t, blobs, 2)
	assert.Equal(t, "one.txt", blobs[0].BlobName())
	assert.Equal(t, "two.json", blobs[1].BlobName())

	blobs, err = svc.Blobs(ctx, "", stash.NewListBlobsRequest().WithPrefix("dir/sub"))
	require.NoError(t, err)
	require.Len(t, blobs, 1)
	assert.Equal(t, "three.txt", blobs[0].BlobName())

	blob, ok, err := svc.Blob(ctx, "dir")
	require.NoError(t, err)
	require.True(t, ok)
	assert.IsType(t, &stash.Directory{}, blob)
	assert.Equal(t, "directory s3://b/dir", blob.String())
}

func TestService_Attributes(t *testing.T) {
	ctx := context.Background()
	svc, _ := newFakeService(t, Config{Bucket: "b"})
	require.NoError(t, svc.Init(ctx))

	req := stash.NewUploadRequest([]byte("plain")).
		WithContentType("text/x-custom").
		WithMetadata(map[string]string{"owner": "ops"})
	require.NoError(t, svc.Upload(ctx, "a.txt", req))

	blob, ok, err := svc.Blob(ctx, "a.txt")
	require.NoError(t, err)
	require.True(t, ok)

	f := blob.(*stash.File)
	assert.Equal(t, "text/x-custom", f.ContentType)
	assert.Equal(t, "ops", f.Metadata["owner"])
	assert.False(t, f.LastModifiedAt.IsZero())
	assert.True(t, f.CreatedAt.IsZero())
}

func TestService_ControllerLimitsFetches(t *testing.T) {
	ctx := context.Background()
	rc := resource.NewController(resource.Config{MaxConcurrentReads: 1})
	svc, _ := newFakeService(t, Config{Bucket: "b"}, WithController(rc))
	require.NoError(t, svc.Init(ctx))

	for _, n := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, svc.Upload(ctx, n+".txt", stash.NewUploadRequest([]byte(n))))
	}

	blobs, err := svc.Blobs(ctx, "", nil)
	require.NoError(t, err)
	require.Len(t, blobs, 5)
	for i, n := range []string{"a", "b", "c", "d", "e"} {
		assert.Equal(t, n+".txt", blobs[i].BlobName())
	}
	assert.Zero(t, rc.InFlightReads())
}

func TestService_UploadRoot(t *testing.T) {
	svc, _ := newFakeService(t, Config{Bucket: "b"})
	err := svc.Upload(context.Background(), "./", stash.NewUploadRequest([]byte("x")))
	assert.ErrorIs(t, err, stash.ErrInvalidPath)
}

func TestService_InitCreatesBucket(t *testing.T) {
	m := new(MockS3Client)
	svc, err := NewWithClient(m, Config{Bucket: "b", Region: "eu-west-1", DefaultBucketACL: "public-read"})
	require.NoError(t, err)

	m.On("HeadBucket", mock.Anything, mock.Anything).Return(nil, &types.NotFound{}).Once()
	m.On("CreateBucket", mock.Anything, mock.MatchedBy(func(in *s3.CreateBucketInput) bool {
		return aws.ToString(in.Bucket) == "b" &&
			in.ACL == types.BucketCannedACLPublicRead &&
			in.CreateBucketConfiguration != nil &&
			in.CreateBucketConfiguration.LocationConstraint == types.BucketLocationConstraintEuWest1
	})).Return(&s3.CreateBucketOutput{}, nil).Once()

	require.NoError(t, svc.Init(context.Background()))
	m.AssertExpectations(t)
}

func TestService_InitDefaultRegion(t *testing.T) {
	m := new(MockS3Client)
	svc, err := NewWithClient(m, Config{Bucket: "b"})
	require.NoError(t, err)

	m.On("HeadBucket", mock.Anything, mock.Anything).Return(nil, &types.NotFound{}).Once()
	m.On("CreateBucket", mock.Anything, mock.MatchedBy(func(in *s3.CreateBucketInput) bool {
		return in.CreateBucketConfiguration == nil
	})).Return(nil, &types.BucketAlreadyOwnedByYou{}).Once()

	require.NoError(t, svc.Init(context.Background()))
	m.AssertExpectations(t)
}

func TestService_InitAccessDenied(t *testing.T) {
	m := new(MockS3Client)
	svc, err := NewWithClient(m, Config{Bucket: "b"})
	require.NoError(t, err)

	m.On("HeadBucket", mock.Anything, mock.Anything).
		Return(nil, &smithy.GenericAPIError{Code: "AccessDenied"}).Once()

	err = svc.Init(context.Background())
	assert.ErrorIs(t, err, stash.ErrPermission)
	m.AssertExpectations(t)
}

func TestService_UploadSetsHeaders(t *testing.T) {
	m := new(MockS3Client)
	svc, err := NewWithClient(m, Config{Bucket: "b", Prefix: "p", DefaultObjectACL: "public-read"})
	require.NoError(t, err)

	m.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		body, _ := io.ReadAll(in.Body)
		return aws.ToString(in.Key) == "p/doc.json" &&
			aws.ToString(in.IfNoneMatch) == "*" &&
			aws.ToString(in.ContentType) == "application/json; charset=utf-8" &&
			in.ACL == types.ObjectCannedACLPublicRead &&
			in.Metadata["k"] == "v" &&
			string(body) == `{"a":1}`
	})).Return(&s3.PutObjectOutput{}, nil).Once()

	req := stash.NewUploadRequest([]byte(`{"a":1}`)).WithMetadata(map[string]string{"k": "v"})
	require.NoError(t, svc.Upload(context.Background(), "doc.json", req))
	m.AssertExpectations(t)
}

func TestService_UploadConflictIsSkipped(t *testing.T) {
	m := new(MockS3Client)
	svc, err := NewWithClient(m, Config{Bucket: "b"})
	require.NoError(t, err)

	m.On("PutObject", mock.Anything, mock.Anything).
		Return(nil, &smithy.GenericAPIError{Code: codeConditionalRequestConflict}).Once()

	require.NoError(t, svc.Upload(context.Background(), "x", stash.NewUploadRequest([]byte("x"))))
	m.AssertExpectations(t)
}

func TestService_HeadGuardSkipsPut(t *testing.T) {
	m := new(MockS3Client)
	svc, err := NewWithClient(m, Config{Bucket: "b", DisableConditionalWrites: true})
	require.NoError(t, err)

	m.On("HeadObject", mock.Anything, mock.Anything).Return(&s3.HeadObjectOutput{}, nil).Once()

	require.NoError(t, svc.Upload(context.Background(), "x", stash.NewUploadRequest([]byte("x"))))
	m.AssertExpectations(t)
	m.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything)
}

func TestService_OpenError(t *testing.T) {
	m := new(MockS3Client)
	svc, err := NewWithClient(m, Config{Bucket: "b"})
	require.NoError(t, err)

	m.On("GetObject", mock.Anything, mock.Anything).
		Return(nil, &smithy.GenericAPIError{Code: "SlowDown"}).Once()

	_, ok, err := svc.Open(context.Background(), "x")
	assert.False(t, ok)
	assert.ErrorIs(t, err, stash.ErrTransient)

	var se *stash.Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, Name, se.Service)
	assert.Equal(t, stash.OpOpen, se.Op)
}

func TestService_ListPagination(t *testing.T) {
	m := new(MockS3Client)
	svc, err := NewWithClient(m, Config{Bucket: "b"})
	require.NoError(t, err)

	m.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return in.ContinuationToken == nil && aws.ToString(in.Delimiter) == "/"
	})).Return(&s3.ListObjectsV2Output{
		IsTruncated:           aws.Bool(true),
		NextContinuationToken: aws.String("token"),
		Contents:              []types.Object{{Key: aws.String("1.txt")}},
	}, nil).Once()
	m.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return aws.ToString(in.ContinuationToken) == "token"
	})).Return(&s3.ListObjectsV2Output{
		IsTruncated: aws.Bool(false),
		Contents:    []types.Object{{Key: aws.String("2.txt")}},
	}, nil).Once()

	for _, k := range []string{"1.txt", "2.txt"} {
		m.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
			return aws.ToString(in.Key) == k
		})).Return(&s3.GetObjectOutput{
			Body:        io.NopCloser(strings.NewReader(k)),
			ContentType: aws.String("text/plain"),
		}, nil).Once()
	}

	blobs, err := svc.Blobs(context.Background(), "", nil)
	require.NoError(t, err)
	require.Len(t, blobs, 2)
	assert.Equal(t, "1.txt", blobs[0].BlobName())
	assert.Equal(t, "2.txt", blobs[1].BlobName())
	m.AssertExpectations(t)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want stash.Kind
	}{
		{"no such key", &types.NoSuchKey{}, stash.KindNotFound},
		{"not found code", &smithy.GenericAPIError{Code: "NotFound"}, stash.KindNotFound},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, stash.KindPermission},
		{"slow down", &smithy.GenericAPIError{Code: "SlowDown"}, stash.KindTransient},
		{"invalid name", &smithy.GenericAPIError{Code: "InvalidBucketName"}, stash.KindInvalidInput},
		{"canceled", context.Canceled, stash.KindTransient},
		{"unknown", errors.New("boom"), stash.KindBackend},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.err))
		})
	}

	assert.Nil(t, translateError(stash.OpOpen, "k", nil))
	assert.True(t, isConflict(&smithy.GenericAPIError{Code: codePreconditionFailed}))
	assert.False(t, isConflict(&smithy.GenericAPIError{Code: "AccessDenied"}))
}

func TestService_Instrumented(t *testing.T) {
	ctx := context.Background()
	svc, _ := newFakeService(t, Config{Bucket: "b"})
	mc := &stash.BasicMetricsCollector{}
	wrapped := stash.Instrument(svc, stash.WithMetricsCollector(mc))

	require.NoError(t, wrapped.Init(ctx))
	require.NoError(t, wrapped.Upload(ctx, "a", stash.NewUploadRequest([]byte("abc"))))
	_, _, err := wrapped.Open(ctx, "a")
	require.NoError(t, err)

	stats := mc.GetStats()
	assert.Equal(t, int64(1), stats[Name+"/"+stash.OpUpload].Count)
	assert.Equal(t, int64(3), stats[Name+"/"+stash.OpOpen].Bytes)
}
