package handler

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/devlog-hq/devlog/internal/modules/service"
	"github.com/devlog-hq/devlog/internal/pkg/apperr"
	"github.com/devlog-hq/devlog/internal/pkg/paging"
)

var registerOnce sync.Once

// RegisterValidators reports field errors by their JSON/form names and adds
// the devtag rule.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
				if name != "" && name != "-" {
					return name
				}
			}
			return f.Name
		})
		_ = v.RegisterValidation("devtag", func(fl validator.FieldLevel) bool {
			_, err := service.NormalizeDeveloperTag(fl.Field().String())
			return err == nil
		})
	})
}

// bindErr turns binding failures into validation errors. Every missing
// field is listed at once.
func bindErr(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return apperr.Validation(apperr.CodeInvalidFormat, "malformed request body")
	}
	var missing, invalid []string
	for _, fe := range ve {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
		} else {
			invalid = append(invalid, fe.Field())
		}
	}
	if len(missing) > 0 {
		return apperr.MissingFields(missing...)
	}
	e := apperr.Validation(apperr.CodeInvalidFormat, "invalid value")
	e.Fields = invalid
	return e
}

func bindJSON(c *gin.Context, req any) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return bindErr(err)
	}
	return nil
}

func bindQuery(c *gin.Context, req any) error {
	if err := c.ShouldBindQuery(req); err != nil {
		return bindErr(err)
	}
	return nil
}

func pageFrom(c *gin.Context) (paging.Page, error) {
	return paging.Parse(c.Query("page"), c.Query("per_page"))
}

func idParam(c *gin.Context, name string) (uint, error) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		e := apperr.Validation(apperr.CodeInvalidFormat, "%s must be a positive integer", name)
		e.Fields = []string{name}
		return 0, e
	}
	return uint(n), nil
}
