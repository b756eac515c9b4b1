package assets

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/scanmarket-backend/pkg/db"
	"github.com/angelmondragon/scanmarket-backend/pkg/db/dbtest"
	"github.com/angelmondragon/scanmarket-backend/pkg/db/models"
	"github.com/angelmondragon/scanmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/scanmarket-backend/pkg/errors"
	"github.com/angelmondragon/scanmarket-backend/pkg/storage"
	"github.com/angelmondragon/scanmarket-backend/pkg/storage/local"
)

type fixture struct {
	conn  *gorm.DB
	store *local.Store
	svc   Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := dbtest.Open(t)
	store, err := local.New(local.Options{
		Root:          t.TempDir(),
		BaseURL:       "http://localhost:8000",
		SigningSecret: "test-secret",
	})
	require.NoError(t, err)
	svc, err := NewService(db.NewFromConn(conn), NewRepository(conn), store, nil, nil)
	require.NoError(t, err)
	return fixture{conn: conn, store: store, svc: svc}
}

func (f fixture) put(t *testing.T, key string, payload []byte) string {
	t.Helper()
	require.NoError(t, f.store.Save(context.Background(), key, bytes.NewReader(payload), int64(len(payload)), ""))
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func (f fixture) initAsset(t *testing.T, owner uuid.UUID) *InitUploadResult {
	t.Helper()
	lidar := enums.DimsSourceLidar
	w := 12.5
	res, err := f.svc.InitUpload(context.Background(), owner, InitUploadInput{
		DimsSource: &lidar,
		DimsWidth:  &w,
		Files: []FileInitMeta{
			{Role: enums.FileRoleModelUSDZ, SizeBytes: 10},
			{Role: enums.FileRolePreviewPNG, SizeBytes: 4},
		},
		Images: []ImageInitMeta{{ImageType: enums.ImageTypeThumbnail, SortOrder: 0, SizeBytes: 3}},
	})
	require.NoError(t, err)
	return res
}

func TestInitUploadMovesToUploadingAndPresigns(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()

	res := f.initAsset(t, owner)

	assert.Equal(t, enums.AssetStatusUploading, res.Status)
	require.Len(t, res.PresignedUploads, 2)
	require.Len(t, res.PresignedImageUploads, 1)
	assert.Contains(t, res.PresignedUploads[0].URL, "/storage/assets/"+res.AssetID.String()+"/model_usdz.usdz?exp=")
	assert.Contains(t, res.PresignedImageUploads[0].URL, "/thumbnail_0.png?")
	assert.True(t, res.PresignedUploads[0].ExpiresAt.After(time.Now()))

	var row models.ModelAsset
	require.NoError(t, f.conn.First(&row, "id = ?", res.AssetID).Error)
	assert.Equal(t, enums.AssetStatusUploading, row.Status)
	assert.Equal(t, owner, row.OwnerID)
}

func TestInitUploadRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	ctx := context.Background()

	cases := []InitUploadInput{
		{Files: []FileInitMeta{{Role: "MODEL_OBJ", SizeBytes: 1}}},
		{Files: []FileInitMeta{{Role: enums.FileRoleModelGLB, SizeBytes: 0}}},
		{Files: []FileInitMeta{{Role: enums.FileRoleModelGLB, SizeBytes: 1}, {Role: enums.FileRoleModelGLB, SizeBytes: 2}}},
		{Files: []FileInitMeta{{Role: enums.FileRoleModelGLB, SizeBytes: 1}}, Images: []ImageInitMeta{{ImageType: "BANNER", SizeBytes: 1}}},
	}
	for i, input := range cases {
		_, err := f.svc.InitUpload(ctx, owner, input)
		require.Error(t, err, "case %d", i)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "case %d: %v", i, err)
	}

	other := &models.CaptureSession{OwnerID: uuid.New()}
	require.NoError(t, f.conn.Create(other).Error)
	_, err := f.svc.InitUpload(ctx, owner, InitUploadInput{
		CaptureSessionID: &other.ID,
		Files:            []FileInitMeta{{Role: enums.FileRoleModelGLB, SizeBytes: 1}},
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestInitUploadWithoutFilesNeverCompletes(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	ctx := context.Background()

	res, err := f.svc.InitUpload(ctx, owner, InitUploadInput{Files: []FileInitMeta{}})
	require.NoError(t, err)
	assert.Equal(t, enums.AssetStatusUploading, res.Status)
	assert.Empty(t, res.PresignedUploads)

	_, err = f.svc.CompleteUpload(ctx, owner, CompleteUploadInput{AssetID: res.AssetID})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "%v", err)

	var row models.ModelAsset
	require.NoError(t, f.conn.First(&row, "id = ?", res.AssetID).Error)
	assert.Equal(t, enums.AssetStatusUploading, row.Status)
}

func TestCompleteUploadVerifiesAndMarksReady(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	res := f.initAsset(t, owner)

	modelKey, _ := storage.ModelKey(res.AssetID, enums.FileRoleModelUSDZ)
	previewKey, _ := storage.ModelKey(res.AssetID, enums.FileRolePreviewPNG)
	thumbKey, _ := storage.ImageKey(res.AssetID, enums.ImageTypeThumbnail, 0)
	modelSum := f.put(t, modelKey, []byte("0123456789"))
	previewSum := f.put(t, previewKey, []byte("png!"))
	thumbSum := f.put(t, thumbKey, []byte("jpg"))

	out, err := f.svc.CompleteUpload(context.Background(), owner, CompleteUploadInput{
		AssetID: res.AssetID,
		Files: []FileCompleteMeta{
			{Role: enums.FileRoleModelUSDZ, SizeBytes: 10, ChecksumSHA256: modelSum},
			{Role: enums.FileRolePreviewPNG, SizeBytes: 4, ChecksumSHA256: previewSum},
		},
		Images: []ImageCompleteMeta{{ImageType: enums.ImageTypeThumbnail, SortOrder: 0, SizeBytes: 3, ChecksumSHA256: thumbSum}},
	})
	require.NoError(t, err)
	assert.Equal(t, enums.AssetStatusReady, out.Status)
	require.Len(t, out.Files, 2)
	assert.True(t, out.Files[0].Verified)
	require.Len(t, out.ImageResults, 1)

	detail, err := f.svc.GetAsset(context.Background(), res.AssetID)
	require.NoError(t, err)
	assert.Equal(t, enums.ArAvailabilityReady, detail.Availability)
	assert.Len(t, detail.Files, 2)
	require.Len(t, detail.Images, 1)
	assert.Equal(t, thumbKey, detail.Images[0].StorageKey)

	_, err = f.svc.CompleteUpload(context.Background(), owner, CompleteUploadInput{
		AssetID: res.AssetID,
		Files:   []FileCompleteMeta{{Role: enums.FileRoleModelUSDZ, SizeBytes: 10, ChecksumSHA256: modelSum}},
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "second completion must be a state conflict: %v", err)
}

func TestCompleteUploadFailureWritesNothing(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	res := f.initAsset(t, owner)

	modelKey, _ := storage.ModelKey(res.AssetID, enums.FileRoleModelUSDZ)
	modelSum := f.put(t, modelKey, []byte("0123456789"))

	tests := []struct {
		name  string
		files []FileCompleteMeta
	}{
		{"missing object", []FileCompleteMeta{
			{Role: enums.FileRoleModelUSDZ, SizeBytes: 10, ChecksumSHA256: modelSum},
			{Role: enums.FileRolePreviewPNG, SizeBytes: 4, ChecksumSHA256: modelSum},
		}},
		{"size mismatch", []FileCompleteMeta{{Role: enums.FileRoleModelUSDZ, SizeBytes: 11, ChecksumSHA256: modelSum}}},
		{"checksum mismatch", []FileCompleteMeta{{Role: enums.FileRoleModelUSDZ, SizeBytes: 10, ChecksumSHA256: hex.EncodeToString(make([]byte, 32))}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CompleteUpload(context.Background(), owner, CompleteUploadInput{AssetID: res.AssetID, Files: tt.files})
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "%v", err)

			var count int64
			require.NoError(t, f.conn.Model(&models.ModelAssetFile{}).Where("asset_id = ?", res.AssetID).Count(&count).Error)
			assert.Zero(t, count)

			var row models.ModelAsset
			require.NoError(t, f.conn.First(&row, "id = ?", res.AssetID).Error)
			assert.Equal(t, enums.AssetStatusUploading, row.Status)
		})
	}
}

func TestCompleteUploadOwnershipAndExistence(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	res := f.initAsset(t, owner)
	files := []FileCompleteMeta{{Role: enums.FileRoleModelUSDZ, SizeBytes: 10, ChecksumSHA256: hex.EncodeToString(make([]byte, 32))}}

	_, err := f.svc.CompleteUpload(context.Background(), uuid.New(), CompleteUploadInput{AssetID: res.AssetID, Files: files})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.CompleteUpload(context.Background(), owner, CompleteUploadInput{AssetID: uuid.New(), Files: files})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestGetARAsset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	missing, err := f.svc.GetARAsset(ctx, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, enums.ArAvailabilityNone, missing.Availability)
	assert.Nil(t, missing.AssetID)
	assert.Empty(t, missing.Files)

	owner := uuid.New()
	res := f.initAsset(t, owner)
	processing, err := f.svc.GetARAsset(ctx, res.AssetID)
	require.NoError(t, err)
	assert.Equal(t, enums.ArAvailabilityProcessing, processing.Availability)
	assert.Empty(t, processing.Files)
	require.NotNil(t, processing.DimsTrust)
	assert.Equal(t, enums.DimsTrustHigh, *processing.DimsTrust)

	modelKey, _ := storage.ModelKey(res.AssetID, enums.FileRoleModelUSDZ)
	previewKey, _ := storage.ModelKey(res.AssetID, enums.FileRolePreviewPNG)
	modelSum := f.put(t, modelKey, []byte("0123456789"))
	previewSum := f.put(t, previewKey, []byte("png!"))
	_, err = f.svc.CompleteUpload(ctx, owner, CompleteUploadInput{
		AssetID: res.AssetID,
		Files: []FileCompleteMeta{
			{Role: enums.FileRoleModelUSDZ, SizeBytes: 10, ChecksumSHA256: modelSum},
			{Role: enums.FileRolePreviewPNG, SizeBytes: 4, ChecksumSHA256: previewSum},
		},
	})
	require.NoError(t, err)

	ready, err := f.svc.GetARAsset(ctx, res.AssetID)
	require.NoError(t, err)
	assert.Equal(t, enums.ArAvailabilityReady, ready.Availability)
	require.Len(t, ready.Files, 2)
	types := map[enums.FileRole]string{}
	for _, file := range ready.Files {
		types[file.Role] = file.Type
		assert.Contains(t, file.URL, "http://localhost:8000/storage/assets/")
	}
	assert.Equal(t, "model", types[enums.FileRoleModelUSDZ])
	assert.Equal(t, "preview", types[enums.FileRolePreviewPNG])
}

func TestCaptureSession(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	frames := 240
	session, err := f.svc.CreateCaptureSession(context.Background(), owner, CaptureSessionInput{FrameCount: &frames})
	require.NoError(t, err)
	assert.Equal(t, owner, session.OwnerID)

	res, err := f.svc.InitUpload(context.Background(), owner, InitUploadInput{
		CaptureSessionID: &session.ID,
		Files:            []FileInitMeta{{Role: enums.FileRoleModelGLB, SizeBytes: 1}},
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, res.AssetID)
}
