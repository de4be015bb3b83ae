package fsentry

import "testing"

func TestEntryDerivedProperties(t *testing.T) {
	tests := []struct {
		path    string
		name    string
		dir     string
		dirName string
		ext     string
	}{
		{
			path:    "photos/2019/img_001.jpg",
			name:    "img_001.jpg",
			dir:     "photos/2019/",
			dirName: "2019",
			ext:     ".jpg",
		},
		{
			path:    "notes.txt",
			name:    "notes.txt",
			dir:     "",
			dirName: "",
			ext:     ".txt",
		},
		{
			path:    "backup/archive.tar.gz",
			name:    "archive.tar.gz",
			dir:     "backup/",
			dirName: "backup",
			ext:     ".gz",
		},
		{
			path:    "src/README",
			name:    "README",
			dir:     "src/",
			dirName: "src",
			ext:     "",
		},
		{
			path:    "home/.bashrc",
			name:    ".bashrc",
			dir:     "home/",
			dirName: "home",
			ext:     "",
		},
		{
			path:    "a/b/c/leaf",
			name:    "leaf",
			dir:     "a/b/c/",
			dirName: "c",
			ext:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			e := &Entry{Path: tt.path}
			if got := e.Name(); got != tt.name {
				t.Errorf("Name() = %q, want %q", got, tt.name)
			}
			if got := e.Dir(); got != tt.dir {
				t.Errorf("Dir() = %q, want %q", got, tt.dir)
			}
			if got := e.DirName(); got != tt.dirName {
				t.Errorf("DirName() = %q, want %q", got, tt.dirName)
			}
			if got := e.Ext(); got != tt.ext {
				t.Errorf("Ext() = %q, want %q", got, tt.ext)
			}
		})
	}
}
