package main

import (
	"fmt"
	"os"
)

// Config holds all environment variables for the sync engine.
type Config struct {
	APIBaseURL string // Catalog API root (default: http://localhost:5001/api)

	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string // Upload folder (default: ecommerce/products)

	RedisURL         string // Queued imports only; empty disables the queue
	MirrorPath       string // Local image mirror file (default: ./data/image_mirror.json)
	ImportStorageDir string // Staged CSV files for queued imports (default: ./data/imports)
	Env              string // "production" switches logging to JSON
}

// LoadConfig loads environment variables into a Config struct and validates
// them. Cloudinary credentials are only required by commands that upload, so
// they are checked at use time, not here.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		APIBaseURL:          os.Getenv("API_BASE_URL"),
		CloudinaryCloudName: os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:    os.Getenv("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret: os.Getenv("CLOUDINARY_API_SECRET"),
		CloudinaryFolder:    os.Getenv("CLOUDINARY_FOLDER"),
		RedisURL:            os.Getenv("REDIS_URL"),
		MirrorPath:          os.Getenv("IMAGE_MIRROR_PATH"),
		ImportStorageDir:    os.Getenv("IMPORT_STORAGE_DIR"),
		Env:                 os.Getenv("APP_ENV"),
	}

	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "http://localhost:5001/api"
	}
	if cfg.CloudinaryFolder == "" {
		cfg.CloudinaryFolder = "ecommerce/products"
	}
	if cfg.MirrorPath == "" {
		cfg.MirrorPath = "./data/image_mirror.json"
	}
	if cfg.ImportStorageDir == "" {
		cfg.ImportStorageDir = "./data/imports"
	}

	return cfg, nil
}

// RequireCloudinary validates that upload credentials are present.
func (c *Config) RequireCloudinary() error {
	if c.CloudinaryCloudName == "" || c.CloudinaryAPIKey == "" || c.CloudinaryAPISecret == "" {
		return fmt.Errorf("CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET are required")
	}
	return nil
}
