package vsphere

import (
	"context"
	"fmt"
	"net/url"

	"github.com/kubev2v/vmware-inventory/internal/inventory"
	"github.com/vmware/govmomi/vapi/rest"
	"github.com/vmware/govmomi/vapi/tags"
	"github.com/vmware/govmomi/vim25"
	"github.com/vmware/govmomi/vim25/mo"
	"github.com/vmware/govmomi/vim25/types"
)

// TagReader returns the tags attached to each object, keyed by managed object id.
type TagReader interface {
	TagsFor(ctx context.Context, refs []types.ManagedObjectReference) (map[string][]inventory.Tag, error)
}

// RESTTagReader reads tags through the vSphere Automation API.
type RESTTagReader struct {
	vim  *vim25.Client
	user *url.Userinfo
}

func NewRESTTagReader(vim *vim25.Client, user *url.Userinfo) *RESTTagReader {
	return &RESTTagReader{vim: vim, user: user}
}

// Tags returns a reader bound to the current session. It must be called after Connect.
func (c *Client) Tags() (*RESTTagReader, error) {
	if c.client == nil {
		return nil, ErrNotConnected
	}
	return NewRESTTagReader(c.client.Client, url.UserPassword(c.creds.Username, c.creds.Password)), nil
}

func (r *RESTTagReader) TagsFor(ctx context.Context, refs []types.ManagedObjectReference) (map[string][]inventory.Tag, error) {
	rc := rest.NewClient(r.vim)
	if err := rc.Login(ctx, r.user); err != nil {
		return nil, fmt.Errorf("logging into the automation API: %w", err)
	}
	defer func() { _ = rc.Logout(ctx) }()

	m := tags.NewManager(rc)

	categories, err := m.GetCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tag categories: %w", err)
	}
	categoryNames := make(map[string]string, len(categories))
	for _, cat := range categories {
		categoryNames[cat.ID] = cat.Name
	}

	objects := make([]mo.Reference, 0, len(refs))
	for _, ref := range refs {
		objects = append(objects, ref)
	}

	attached, err := m.GetAttachedTagsOnObjects(ctx, objects)
	if err != nil {
		return nil, fmt.Errorf("listing attached tags: %w", err)
	}

	out := make(map[string][]inventory.Tag, len(attached))
	for _, a := range attached {
		id := a.ObjectID.Reference().Value
		for _, t := range a.Tags {
			out[id] = append(out[id], inventory.Tag{
				Name:        t.Name,
				Category:    categoryNames[t.CategoryID],
				Description: t.Description,
			})
		}
	}
	return out, nil
}
