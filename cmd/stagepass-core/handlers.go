package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stagepass/go-stagepass-core/config"
	"github.com/stagepass/go-stagepass-core/errcode"
	"github.com/stagepass/go-stagepass-core/gateway"
	"github.com/stagepass/go-stagepass-core/httpclient"
)

// registerAPIRoutes mounts the routes that call out through the
// gateway. A route is only registered when its dependency is
// configured.
func registerAPIRoutes(router *gin.Engine, cfg config.Config, gw *gateway.Gateway) {
	api := router.Group("/api")

	if _, ok := cfg.Gateway.Dependencies["catalog"]; ok {
		api.GET("/events", func(c *gin.Context) {
			resp, err := gw.Get(c.Request.Context(), "catalog", "/v1/events", gateway.Cacheable())
			proxy(c, resp, err)
		})
		api.GET("/events/:id", func(c *gin.Context) {
			resp, err := gw.Get(c.Request.Context(), "catalog", "/v1/events/"+c.Param("id"), gateway.Cacheable())
			proxy(c, resp, err)
		})
	}

	if _, ok := cfg.Gateway.Dependencies["payments"]; ok {
		api.POST("/orders", func(c *gin.Context) {
			var order map[string]any
			if err := c.ShouldBindJSON(&order); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid order payload"})
				return
			}
			resp, err := gw.Post(c.Request.Context(), "payments", "/v1/charges", order)
			proxy(c, resp, err)
		})
	}

	if _, ok := cfg.Gateway.Dependencies["push"]; ok {
		api.POST("/notifications", func(c *gin.Context) {
			var notification map[string]any
			if err := c.ShouldBindJSON(&notification); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid notification payload"})
				return
			}
			resp, err := gw.Post(c.Request.Context(), "push", "/v1/notifications", notification)
			proxy(c, resp, err)
		})
	}
}

// proxy relays the dependency's response or maps a gateway error to
// the caller-facing status.
func proxy(c *gin.Context, resp *httpclient.Response, err error) {
	if err == nil {
		c.Data(resp.StatusCode, resp.Headers.Get("Content-Type"), resp.Body)
		return
	}

	var layered *errcode.LayeredError
	if errors.As(err, &layered) {
		c.JSON(layered.HTTPStatus(), gin.H{
			"success":   false,
			"message":   layered.Message(),
			"errorCode": layered.Key(),
			"details":   layered.Data(),
		})
		return
	}

	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		// the dependency answered with a caller error; relay it
		c.Data(statusErr.StatusCode, "application/json", statusErr.Body)
		return
	}

	c.JSON(http.StatusBadGateway, gin.H{
		"success": false,
		"message": "dependency call failed",
	})
}
