package material

import (
	"context"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/evolvere-edu/evolvere/core"
)

var (
	ErrNotFound        = errors.New("material not found")
	ErrFileTooLarge    = errors.New("file exceeds the upload size limit")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrNotOwner        = errors.New("material belongs to another user")
)

// allowed upload content types
var allowedTypes = map[string]string{
	"application/pdf": ".pdf",
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"video/mp4":       ".mp4",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": ".pptx",
}

// FileStore is any backend that can hold uploaded archives.
type FileStore interface {
	Save(ctx context.Context, key, contentType string, r io.Reader) error
	Delete(ctx context.Context, key string) error
}

type Repository interface {
	CreateMaterial(ctx context.Context, m Material) (Material, error)
	GetMaterialByID(ctx context.Context, id int) (Material, error)
	// QueryMaterialsBySubject returns subject-wide materials plus, when
	// classID > 0, the given class's own.
	QueryMaterialsBySubject(ctx context.Context, subjectID, classID int) ([]Material, error)
	DeleteMaterial(ctx context.Context, id int) error
}

type Service struct {
	repo  Repository
	store FileStore
	conf  *core.Config
}

func NewService(repo Repository, store FileStore, conf *core.Config) *Service {
	return &Service{repo: repo, store: store, conf: conf}
}

// Upload validates and stores the archive, then persists the material row.
// The caller provides the declared content type and size of the part.
func (svc *Service) Upload(ctx context.Context, createdBy int, nm NewMaterial, contentType string, size int64, r io.Reader) (Material, error) {
	ext, ok := allowedTypes[contentType]
	if !ok {
		return Material{}, ErrUnsupportedType
	}
	if size > svc.conf.Uploads.MaxSize {
		return Material{}, ErrFileTooLarge
	}

	key := path.Join("materials", uuid.NewString()+ext)
	if err := svc.store.Save(ctx, key, contentType, io.LimitReader(r, svc.conf.Uploads.MaxSize)); err != nil {
		return Material{}, errors.Wrap(err, "storing archive")
	}

	m, err := svc.repo.CreateMaterial(ctx, Material{
		Title:     nm.Title,
		Type:      contentType,
		Archive:   key,
		CreatedBy: createdBy,
		SubjectID: nm.SubjectID,
		ClassID:   nm.classID(),
		Origin:    nm.origin(),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		// do not leave an orphaned file behind
		_ = svc.store.Delete(ctx, key)
		return Material{}, err
	}
	return m, nil
}

func (svc *Service) QueryBySubject(ctx context.Context, subjectID, classID int) ([]Material, error) {
	return svc.repo.QueryMaterialsBySubject(ctx, subjectID, classID)
}

// Delete removes the material and its archive. Only the uploader may delete.
func (svc *Service) Delete(ctx context.Context, userID, id int) error {
	m, err := svc.repo.GetMaterialByID(ctx, id)
	if err != nil {
		return err
	}
	if m.CreatedBy != userID {
		return ErrNotOwner
	}
	if err = svc.repo.DeleteMaterial(ctx, id); err != nil {
		return err
	}
	return svc.store.Delete(ctx, m.Archive)
}
