package api

import (
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/mahalbook/mahalbook-server/gateway"
	"github.com/mahalbook/mahalbook-server/service/activity"
	"github.com/mahalbook/mahalbook-server/service/booking"
	"github.com/mahalbook/mahalbook-server/service/cart"
	"github.com/mahalbook/mahalbook-server/service/listing"
	"github.com/mahalbook/mahalbook-server/service/notifications"
	"github.com/mahalbook/mahalbook-server/service/payment"
	"github.com/mahalbook/mahalbook-server/service/user"
	"gorm.io/gorm"
)

type APIServer struct {
	address string
	db      *gorm.DB
}

func NewApiServer(address string, db *gorm.DB) *APIServer {
	return &APIServer{
		address: address,
		db:      db,
	}
}

func (s *APIServer) Run() error {
	router := mux.NewRouter()
	subrouter := router.PathPrefix("/api/v1").Subrouter()

	logger := activity.NewLogger(s.db)
	notifier := notifications.NewNotifier(s.db)
	razorpay := gateway.NewClientFromEnv()

	userHandler := user.NewHandler(s.db, logger)
	userHandler.RegisterRoutes(subrouter)

	listingHandler := listing.NewHandler(s.db, logger, notifier)
	listingHandler.RegisterRoutes(subrouter)

	cartHandler := cart.NewHandler(s.db)
	cartHandler.RegisterRoutes(subrouter)

	bookingHandler := booking.NewHandler(s.db, logger)
	bookingHandler.RegisterRoutes(subrouter)

	paymentHandler := payment.NewHandler(s.db, razorpay, logger, notifier)
	paymentHandler.RegisterRoutes(subrouter)

	activityHandler := activity.NewHandler(s.db)
	activityHandler.RegisterRoutes(subrouter)

	notificationsHandler := notifications.NewHandler(s.db)
	notificationsHandler.RegisterRoutes(subrouter)

	corsHandler := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)

	log.Println("Server running at", s.address)
	return http.ListenAndServe(s.address, corsHandler(router))
}
