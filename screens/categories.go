package screens

import (
	"net/http"

	"chthabserver/catalog"

	"github.com/gin-gonic/gin"
)

// Categories lists every category with its locations so clients need not ship the catalog.
func Categories(c *gin.Context, cat *catalog.Catalog) {
	c.JSON(http.StatusOK, gin.H{
		"default":    cat.DefaultCategory(),
		"categories": cat.Categories(),
	})
}
