package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	FILE_EXT_SHP = ".shp"
	FILE_EXT_CPG = ".cpg"

	UTF8  = "UTF8"
	UTF_8 = "UTF-8"
)

// 在parentPath下新建以uuid命名的子目录
func GetUniqSubDir(parentPath string) (path string, err error) {
	if err = os.MkdirAll(parentPath, os.ModePerm); err != nil {
		return
	}
	path = filepath.Join(parentPath, uuid.NewString())
	err = os.Mkdir(path, os.ModePerm)
	return
}

func GetFilenameWithoutExt(path string) (name string) {
	name = filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(path))
	return
}

func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// 目录不存在则新建，存在则清空其中内容
func PrepareEmptyDir(dir string) (err error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return os.MkdirAll(dir, os.ModePerm)
	}
	if err != nil {
		return
	}
	for _, e := range entries {
		if err = os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return
		}
	}
	return
}

// 读取shp同名cpg文件中的编码，无cpg时返回空串
func GetShpEncoding(shp string) (enc string) {
	cpg := strings.TrimSuffix(shp, filepath.Ext(shp)) + FILE_EXT_CPG
	raw, err := os.ReadFile(cpg)
	if err != nil {
		return
	}
	return strings.ToUpper(strings.TrimSpace(string(raw)))
}

func IsUtf8Encoding(enc string) bool {
	enc = strings.ToUpper(enc)
	return enc == UTF_8 || enc == UTF8
}

// 样本切片序号对应的目录名，如 00000012
func SampleName(tmpl string, n int) string {
	return fmt.Sprintf(tmpl, n)
}
