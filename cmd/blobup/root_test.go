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

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	blob "gitee.com/ivfzhou/blob-uploader"
	"gitee.com/ivfzhou/blob-uploader/internal/blobtest"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestUploadHeadDelete(t *testing.T) {
	for _, mode := range []string{"--async=false", "--async=true"} {
		t.Run(mode, func(t *testing.T) {
			store := blobtest.Start(t)
			t.Setenv("BLOBUP_TOKEN", blobtest.Token)

			file := filepath.Join(t.TempDir(), "notes.txt")
			content := strings.Repeat("hello blob\n", 100)
			require.NoError(t, os.WriteFile(file, []byte(content), 0o600))

			stdout, stderr, err := execute(t, "upload", file, "docs/notes.txt", mode, "--api-url", store.URL,
				"--random-suffix=false", "--progress")
			require.NoError(t, err, stderr)
			var desc blob.ObjectDescriptor
			require.NoError(t, sonic.UnmarshalString(stdout, &desc))
			assert.Equal(t, "docs/notes.txt", desc.Pathname)
			assert.Equal(t, int64(len(content)), desc.Size)
			assert.True(t, strings.HasPrefix(desc.ContentType, "text/plain"), desc.ContentType)
			assert.Contains(t, stderr, "(100%)")

			obj, ok := store.Object("docs/notes.txt")
			require.True(t, ok)
			assert.Equal(t, content, string(obj.Data))

			stdout, _, err = execute(t, "head", desc.URL, mode, "--api-url", store.URL)
			require.NoError(t, err)
			var info blob.ObjectInfo
			require.NoError(t, sonic.UnmarshalString(stdout, &info))
			assert.Equal(t, int64(len(content)), info.Size)

			_, _, err = execute(t, "delete", desc.URL, mode, "--api-url", store.URL)
			require.NoError(t, err)

			stdout, _, err = execute(t, "head", desc.URL, "--exists", mode, "--api-url", store.URL)
			require.NoError(t, err)
			assert.Equal(t, "false\n", stdout)
		})
	}
}

func TestConfigFile(t *testing.T) {
	store := blobtest.Start(t)
	config := filepath.Join(t.TempDir(), "blobup.yaml")
	require.NoError(t, os.WriteFile(config, []byte("token: "+blobtest.Token+"\napi-url: "+store.URL+"\n"), 0o600))

	file := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(file, []byte{0, 1, 2, 3}, 0o600))

	_, stderr, err := execute(t, "upload", file, "--config", config, "--content-type", "application/x-test")
	require.NoError(t, err, stderr)
	assert.Equal(t, 1, store.Calls("complete"))
	assert.Equal(t, "1", store.CreateHeaders()[0].Get("x-add-random-suffix"))
	assert.Equal(t, "application/x-test", store.CreateHeaders()[0].Get("x-content-type"))
}

func TestUploadErrors(t *testing.T) {
	store := blobtest.Start(t)
	t.Setenv("BLOBUP_TOKEN", blobtest.Token)
	file := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(file, []byte("data"), 0o600))

	_, _, err := execute(t, "upload", file, "--api-url", store.URL, "--part-size", "lots")
	assert.ErrorContains(t, err, "invalid part size")

	_, _, err = execute(t, "upload", file, "--api-url", store.URL, "--part-size", "1KiB")
	var validationErr *blob.ValidationError
	assert.ErrorAs(t, err, &validationErr)

	_, _, err = execute(t, "upload", filepath.Join(t.TempDir(), "missing"), "--api-url", store.URL,
		"--content-type", "text/plain")
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, 0, store.Calls("create"))
}

func TestProgressPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := &progressPrinter{w: &buf, step: 25}
	for _, loaded := range []int64{10, 20, 30, 60, 61, 100} {
		p.print(blob.ProgressEvent{PartNumber: 1, Loaded: loaded, Total: 100})
	}
	assert.Equal(t, "30 B / 100 B (30%)\n60 B / 100 B (60%)\n100 B / 100 B (100%)\n", buf.String())
}
