// Package server assembles the HTTP surface: health probes, metrics, and the
// authenticated v1 API.
package server

import (
	"github.com/adilet/vaultdrive/internal/config"
	"github.com/adilet/vaultdrive/internal/identity"
	"github.com/adilet/vaultdrive/internal/item"
	"github.com/adilet/vaultdrive/internal/logger"
	"github.com/adilet/vaultdrive/internal/metrics"
	"github.com/adilet/vaultdrive/internal/quota"
	"github.com/adilet/vaultdrive/internal/upload"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
)

// Dependencies carries everything the router wires together.
type Dependencies struct {
	Config   config.Config
	Pool     *pgxpool.Pool
	MinIO    *minio.Client
	Resolver identity.SubjectResolver
	Items    *item.Service
	Uploads  *upload.Service
	Ledger   *quota.Ledger
}

// NewRouter builds the gin engine with all routes mounted.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.Middleware())

	registerHealthRoutes(router, deps.Pool, deps.MinIO)
	metrics.Register(router, deps.Config.Metrics.PrometheusPath)

	v1 := router.Group("/v1")
	v1.Use(identity.Middleware(deps.Config.Identity.TokenSecret, deps.Config.Identity.Issuer, deps.Resolver))

	upload.RegisterRoutes(v1, deps.Uploads)
	item.RegisterRoutes(v1, deps.Items)
	quota.RegisterRoutes(v1, deps.Ledger)

	return router
}
