package util

import (
	"os"
)

// DefaultDirPerm 默认目录权限
const DefaultDirPerm os.FileMode = 0o755

// SafeFileOperation 安全的文件操作
// operation 失败时关闭文件并返回错误，成功时把打开的文件交给调用方
func SafeFileOperation(filePath string, flag int, perm os.FileMode, operation func(*os.File) error) (*os.File, error) {
	outFile, err := os.OpenFile(filePath, flag, perm)
	if err != nil {
		return nil, err
	}
	if operation != nil {
		if err = operation(outFile); err != nil {
			outFile.Close()
			return nil, err
		}
	}
	return outFile, nil
}

// EnsureDirExists 确定目录存在，perm 省略时使用 DefaultDirPerm
func EnsureDirExists(dirPath string, perm ...os.FileMode) error {
	mode := DefaultDirPerm
	if len(perm) > 0 && perm[0] != 0 {
		mode = perm[0]
	}
	return os.MkdirAll(dirPath, mode)
}
