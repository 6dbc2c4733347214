/*
 * Copyright (c) 2025 ivfzhou
 * blob-uploader is licensed under Mulan PSL v2.
 * You can use this software according to the terms and conditions of the Mulan PSL v2.
 * You may obtain a copy of Mulan PSL v2 at:
 *          http://license.coscl.org.cn/MulanPSL2
 * THIS SOFTWARE IS PROVIDED ON AN "AS IS" BASIS, WITHOUT WARRANTIES OF ANY KIND,
 * EITHER EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO NON-INFRINGEMENT,
 * MERCHANTABILITY OR FIT FOR A PARTICULAR PURPOSE.
 * See the Mulan PSL v2 for more details.
 */

package blob

import (
	"errors"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

var (
	validatorOnce sync.Once
	validate      *validator.Validate
	translator    ut.Translator
)

// 上传参数的校验视图。
type uploadRequest struct {
	Pathname           string `validate:"required,max=950,excludes=//"`
	MaxConcurrency     int    `validate:"gte=1,lte=64"`
	ContentType        string `validate:"max=255"`
	CacheControlMaxAge int    `validate:"gte=0"`
}

func initValidator() {
	validatorOnce.Do(func() {
		locale := en.New()
		translator, _ = ut.New(locale, locale).GetTranslator("en")
		validate = validator.New(validator.WithRequiredStructEnabled())
		if err := entranslations.RegisterDefaultTranslations(validate, translator); err != nil {
			translator = nil
		}
	})
}

// 校验结构体，第一个不合法的字段转为 ValidationError。
func validateStruct(s any) error {
	initValidator()
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) <= 0 {
		return &ValidationError{Field: "options", Reason: err.Error()}
	}
	fe := fieldErrs[0]
	reason := fe.Error()
	if translator != nil {
		reason = fe.Translate(translator)
	}
	return &ValidationError{Field: fe.Field(), Reason: reason}
}
