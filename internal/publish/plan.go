package publish

import "fmt"

// Target is the remote address of one repository file.
type Target struct {
	Owner  string
	Repo   string
	Branch string // empty means the repository's default branch
	Path   string
}

func (t Target) String() string {
	if t.Branch == "" {
		return fmt.Sprintf("%s/%s:%s", t.Owner, t.Repo, t.Path)
	}
	return fmt.Sprintf("%s/%s@%s:%s", t.Owner, t.Repo, t.Branch, t.Path)
}

// WritePlan is the request the publisher sends for one write. SHA is nil
// when the file does not exist yet; sending it empty on an update would be
// rejected by GitHub as a conflict.
type WritePlan struct {
	Message   string
	Content   []byte
	SHA       *string
	Unchanged bool
}

// Plan decides the write for content given the current remote state. It does
// no I/O.
func Plan(t Target, prefix string, content []byte, sha string, found bool) WritePlan {
	if prefix == "" {
		prefix = DefaultMessagePrefix
	}
	p := WritePlan{
		Message: fmt.Sprintf("%s: %s", prefix, t.Path),
		Content: content,
	}
	if found {
		s := sha
		p.SHA = &s
		p.Unchanged = sha == BlobSHA(content)
	}
	return p
}
