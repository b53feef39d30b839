package worker

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/qs3c/qrcode_go_server/internal/pkg/storage"
	"github.com/qs3c/qrcode_go_server/internal/repository"
)

// ReuploadResult 一次重传的统计
type ReuploadResult struct {
	Records  int
	Uploaded int
	Failed   int
}

// Reuploader 把本地二维码文件补传到对象存储镜像
type Reuploader struct {
	qrcodeRepo *repository.QRCodeRepository
	store      *storage.LocalStore
}

// NewReuploader 创建重传器，store 需已设置镜像
func NewReuploader(qrcodeRepo *repository.QRCodeRepository, store *storage.LocalStore) *Reuploader {
	return &Reuploader{
		qrcodeRepo: qrcodeRepo,
		store:      store,
	}
}

// Run 遍历所有记录重传文件；单条失败只记录日志
func (r *Reuploader) Run(ctx context.Context) (*ReuploadResult, error) {
	codes, err := r.qrcodeRepo.ListAll()
	if err != nil {
		return nil, err
	}

	result := &ReuploadResult{}
	for _, code := range codes {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Records++

		n, err := r.store.Resync(code.Paths()...)
		result.Uploaded += n
		if err != nil {
			if errors.Is(err, storage.ErrNoMirror) {
				return result, err
			}
			result.Failed++
			log.WithError(err).WithField("public_id", code.PublicIDValue()).Warn("Reuploader: failed to mirror qr code")
		}
	}

	log.WithFields(log.Fields{
		"records":  result.Records,
		"uploaded": result.Uploaded,
		"failed":   result.Failed,
	}).Info("Reuploader: finished")
	return result, nil
}
