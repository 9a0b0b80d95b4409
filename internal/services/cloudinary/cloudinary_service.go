package cloudinary

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/log"

	"github.com/rajivgeraev/barter-api/internal/apperr"
	"github.com/rajivgeraev/barter-api/internal/config"
)

// ErrDisabled ключи Cloudinary не заданы
var ErrDisabled = apperr.New(apperr.KindUnavailable, "uploads_disabled", "Загрузка изображений не настроена")

// UploadParams подписанные параметры прямой загрузки изображения из клиента.
// Полученный после загрузки secure_url сохраняется в image_url объявления.
type UploadParams struct {
	Timestamp    string `json:"timestamp"`
	Signature    string `json:"signature"`
	APIKey       string `json:"api_key"`
	CloudName    string `json:"cloud_name"`
	Folder       string `json:"folder,omitempty"`
	UploadPreset string `json:"upload_preset,omitempty"`
	UploadURL    string `json:"upload_url"`
}

// CloudinaryService предоставляет методы для работы с Cloudinary
type CloudinaryService struct {
	cld          *cloudinary.Cloudinary
	uploadFolder string
	uploadPreset string
	now          func() time.Time
}

// NewCloudinaryService создает новый экземпляр CloudinaryService.
// Без ключей сервис создается, но отвечает 503.
func NewCloudinaryService(cfg config.CloudinaryConfig) *CloudinaryService {
	s := &CloudinaryService{
		uploadFolder: cfg.UploadFolder,
		uploadPreset: cfg.UploadPreset,
		now:          time.Now,
	}
	if !cfg.Enabled() {
		return s
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		log.Warnf("Cloudinary не инициализирован: %v", err)
		return s
	}
	s.cld = cld
	return s
}

// Enabled сообщает, можно ли выдавать параметры загрузки
func (s *CloudinaryService) Enabled() bool {
	return s.cld != nil
}

// SignUpload подписывает параметры загрузки текущим временем
func (s *CloudinaryService) SignUpload() (*UploadParams, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}

	timestamp := strconv.FormatInt(s.now().Unix(), 10)

	// Подписываются все параметры, которые клиент отправит вместе с файлом
	params := url.Values{}
	params.Set("timestamp", timestamp)
	if s.uploadFolder != "" {
		params.Set("folder", s.uploadFolder)
	}
	if s.uploadPreset != "" {
		params.Set("upload_preset", s.uploadPreset)
	}

	signature, err := api.SignParameters(params, s.cld.Config.Cloud.APISecret)
	if err != nil {
		return nil, fmt.Errorf("ошибка подписи параметров загрузки: %w", err)
	}

	cloudName := s.cld.Config.Cloud.CloudName
	return &UploadParams{
		Timestamp:    timestamp,
		Signature:    signature,
		APIKey:       s.cld.Config.Cloud.APIKey,
		CloudName:    cloudName,
		Folder:       s.uploadFolder,
		UploadPreset: s.uploadPreset,
		UploadURL:    "https://api.cloudinary.com/v1_1/" + cloudName + "/image/upload",
	}, nil
}

// GenerateUploadParams создаёт параметры для загрузки изображений
func (s *CloudinaryService) GenerateUploadParams(c fiber.Ctx) error {
	params, err := s.SignUpload()
	if err != nil {
		return err
	}
	return c.JSON(params)
}
