package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mwendwa/event-manager-go/assets"
	"github.com/mwendwa/event-manager-go/controllers"
	"github.com/mwendwa/event-manager-go/integrity"
	"github.com/mwendwa/event-manager-go/metrics"
	"github.com/mwendwa/event-manager-go/models"
	"github.com/mwendwa/event-manager-go/rabbit"
	"github.com/mwendwa/event-manager-go/storage"
)

// Deps carries the constructed handles the handlers need. Everything is
// injected; no package state.
type Deps struct {
	Repo           storage.Repository
	Refs           *integrity.Validator
	Assets         *assets.Store
	Publisher      rabbit.Publisher
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
	Log            *zerolog.Logger
}

func SetupRoutes(r *gin.Engine, d Deps) {
	// operational
	r.GET("/healthz", controllers.Health(d.Repo))
	r.GET("/metrics", gin.WrapH(d.MetricsHandler))

	venues := r.Group("/venues")
	{
		venues.POST("", controllers.CreateVenue(d.Repo))
		venues.GET("", controllers.ListVenues(d.Repo))
		venues.GET("/:id", controllers.GetVenue(d.Repo))
		venues.PUT("/:id", controllers.UpdateVenue(d.Repo))
		venues.DELETE("/:id", controllers.DeleteVenue(d.Repo, d.Assets, d.Log))
		venues.POST("/:id/assets", controllers.UploadAsset(d.Assets, d.Metrics, models.OwnerVenue))
		venues.GET("/:id/assets", controllers.ListOwnerAssets(d.Assets, d.Refs, models.OwnerVenue, integrity.KindVenue))
	}

	events := r.Group("/events")
	{
		events.POST("", controllers.CreateEvent(d.Repo, d.Refs))
		events.GET("", controllers.ListEvents(d.Repo))
		events.GET("/:id", controllers.GetEvent(d.Repo))
		events.PUT("/:id", controllers.UpdateEvent(d.Repo, d.Refs))
		events.DELETE("/:id", controllers.DeleteEvent(d.Repo, d.Assets, d.Log))
		events.POST("/:id/assets", controllers.UploadAsset(d.Assets, d.Metrics, models.OwnerEvent))
		events.GET("/:id/assets", controllers.ListOwnerAssets(d.Assets, d.Refs, models.OwnerEvent, integrity.KindEvent))
	}

	attendees := r.Group("/attendees")
	{
		attendees.POST("", controllers.CreateAttendee(d.Repo))
		attendees.GET("", controllers.ListAttendees(d.Repo))
		attendees.GET("/:id", controllers.GetAttendee(d.Repo))
		attendees.PUT("/:id", controllers.UpdateAttendee(d.Repo))
		attendees.DELETE("/:id", controllers.DeleteAttendee(d.Repo))
	}

	bookings := r.Group("/bookings")
	{
		bookings.POST("", controllers.CreateBooking(d.Repo, d.Refs, d.Publisher, d.Log))
		bookings.GET("", controllers.ListBookings(d.Repo))
		bookings.GET("/:id", controllers.GetBooking(d.Repo))
		bookings.PUT("/:id", controllers.UpdateBooking(d.Repo, d.Refs))
		bookings.DELETE("/:id", controllers.DeleteBooking(d.Repo))
	}

	assetRoutes := r.Group("/assets")
	{
		assetRoutes.GET("/:id", controllers.DownloadAsset(d.Assets))
		assetRoutes.DELETE("/:id", controllers.DeleteAsset(d.Assets))
	}
}
