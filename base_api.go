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

// 阻塞式客户端。每个公开方法把 baseImpl 的逻辑交给 RunSync 一步执行完。
type client struct {
	*baseImpl
}

// 协作式客户端。每个公开方法把 baseImpl 的逻辑交给 Spawn，返回 Future。
type asyncClient struct {
	*baseImpl
}
