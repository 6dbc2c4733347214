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
	"os"
	"strings"
)

// CredentialProvider 提供访问令牌。找不到令牌时返回 MissingCredentialError。
type CredentialProvider interface {
	Token() (string, error)
}

// StaticToken 固定的访问令牌。
type StaticToken string

// EnvToken 从环境变量 BLOB_READ_WRITE_TOKEN 或 VERCEL_BLOB_READ_WRITE_TOKEN 读取令牌。
type EnvToken struct{}

// Token 返回令牌。
func (t StaticToken) Token() (string, error) {
	if len(t) <= 0 {
		return "", &MissingCredentialError{}
	}
	return string(t), nil
}

// Token 返回令牌。
func (EnvToken) Token() (string, error) {
	for _, name := range []string{"BLOB_READ_WRITE_TOKEN", "VERCEL_BLOB_READ_WRITE_TOKEN"} {
		if v := strings.TrimSpace(os.Getenv(name)); len(v) > 0 {
			return v, nil
		}
	}
	return "", &MissingCredentialError{}
}

// 令牌形如 vercel_blob_rw_<storeId>_<secret>。
func storeIdFromToken(token string) string {
	fields := strings.Split(token, "_")
	if len(fields) < 4 {
		return ""
	}
	return fields[3]
}
