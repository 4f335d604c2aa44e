// Copyright (C) 2025 Bering AI (dev@beringchat.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/beringai/beringchat/services/chat/auth"
	"github.com/beringai/beringchat/services/chat/handlers"
	"github.com/beringai/beringchat/services/chat/middleware"
	"github.com/beringai/beringchat/services/chat/store"
)

// SetupRoutes registers every endpoint of the chat service.
//
// Health and metrics are the only unauthenticated routes; everything
// else sits behind the bearer-token guard, except signup and login
// which exist to obtain that token in the first place.
func SetupRoutes(router *gin.Engine, userHandler *handlers.UserHandler,
	chatHandler *handlers.ChatHandler, issuer *auth.Issuer, users store.UserStore,
	defaultModel string) {

	requireUser := middleware.RequireUser(issuer, users)

	user := router.Group("/user")
	{
		user.POST("/signup", userHandler.HandleSignup)
		user.POST("/token", userHandler.HandleLogin)
		user.POST("/logout", requireUser, userHandler.HandleLogout)
		user.GET("/get", requireUser, userHandler.HandleGetUser)
		user.PUT("/update", requireUser, userHandler.HandleUpdateUser)
		user.DELETE("/del", requireUser, userHandler.HandleDeleteUser)
		user.GET("/all", requireUser, userHandler.HandleListUsers)
	}

	chat := router.Group("/chat")
	{
		chat.GET("/health", handlers.HealthCheck(defaultModel))
		chat.POST("/chat", requireUser, chatHandler.HandleChat)
		chat.GET("/models", requireUser, chatHandler.HandleModels)
		chat.GET("/history", requireUser, chatHandler.HandleHistory)
		chat.DELETE("/history", requireUser, chatHandler.HandleClearHistory)
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
