package main

import (
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/kokukuma/mdoc-wallet/internal/server"
)

func main() {
	srv := server.NewServer()

	r := mux.NewRouter()
	r.Use(handlers.CORS(
		handlers.AllowedMethods([]string{"POST", "GET"}),
		handlers.AllowedHeaders([]string{"content-type"}),
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowCredentials(),
	))

	r.HandleFunc("/wallet/receiveRequest", srv.ReceiveRequest).Methods("POST", "OPTIONS")
	r.HandleFunc("/wallet/sendConsent", srv.SendConsent).Methods("POST", "OPTIONS")

	serverAddress := ":8080"
	log.Println("starting wallet server at", serverAddress)
	log.Fatal(http.ListenAndServe(serverAddress, r))
}
