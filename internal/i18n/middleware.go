package i18n

import "github.com/gin-gonic/gin"

// Middleware negotiates the request language from Accept-Language (or a
// ?lang= override) and stores the localizer in the request context.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var langs []string
		if q := c.Query("lang"); q != "" {
			langs = append(langs, q)
		}
		if h := c.GetHeader("Accept-Language"); h != "" {
			langs = append(langs, h)
		}
		loc := NewLocalizer(langs...)
		c.Request = c.Request.WithContext(WithLocalizer(c.Request.Context(), loc))
		c.Next()
	}
}
