package v1

import (
	"github.com/gin-gonic/gin"
)

// MetaRouteHandler is the handler set of the schema routes.
type MetaRouteHandler interface {
	ListClasses(c *gin.Context)
	GetClass(c *gin.Context)
	GetField(c *gin.Context)
	GetCaptions(c *gin.Context)
	ResolveField(c *gin.Context)
	TableDDL(c *gin.Context)
	Script(c *gin.Context)
	ToInternal(c *gin.Context)
	ToExternal(c *gin.Context)
	Reload(c *gin.Context)
}

// RegisterMetaRoutes registers the schema routes on group.
func RegisterMetaRoutes(group *gin.RouterGroup, handler MetaRouteHandler) {
	classes := group.Group("/classes")
	classes.GET("", handler.ListClasses)
	classes.GET("/:class", handler.GetClass)
	classes.GET("/:class/ddl", handler.TableDDL)
	classes.GET("/:class/fields/:field", handler.GetField)
	classes.GET("/:class/fields/:field/resolve", handler.ResolveField)
	classes.GET("/:class/sections/:section/captions", handler.GetCaptions)

	names := group.Group("/names")
	names.GET("/to-internal", handler.ToInternal)
	names.GET("/to-external", handler.ToExternal)

	group.GET("/ddl", handler.Script)
	group.POST("/reload", handler.Reload)
}
