package netbox_test

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/kubev2v/vmware-inventory/internal/netbox"
	"github.com/kubev2v/vmware-inventory/internal/netbox/netboxtest"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("NetBox client", func() {
	var (
		fake   *netboxtest.Server
		client *netbox.Client
	)

	BeforeEach(func() {
		fake = netboxtest.NewServer()

		var err error
		client, err = netbox.NewClient(fake.URL, "token", fake.Client())
		Expect(err).To(BeNil())
	})

	AfterEach(func() {
		fake.Close()
	})

	It("finds objects by filter", func() {
		id := fake.Seed(netbox.EndpointTenants, map[string]any{"name": "ATI", "slug": "ati"})

		obj, err := client.First(context.TODO(), netbox.EndpointTenants, url.Values{"slug": {"ati"}})
		Expect(err).To(BeNil())
		Expect(obj.ID).To(Equal(id))
		Expect(obj.Name).To(Equal("ATI"))
	})

	It("returns ErrNotFound for an empty result", func() {
		_, err := client.First(context.TODO(), netbox.EndpointTenants, url.Values{"slug": {"missing"}})
		Expect(err).To(MatchError(netbox.ErrNotFound))
	})

	It("creates objects", func() {
		obj, err := client.Create(context.TODO(), netbox.EndpointDeviceRoles, netbox.DeviceRole{
			Name: "server", Slug: "server", Color: "2196f3", VMRole: true,
		})
		Expect(err).To(BeNil())
		Expect(obj.ID).To(BeNumerically(">", 0))

		writes := fake.Writes(http.MethodPost)
		Expect(writes).To(HaveLen(1))
		Expect(writes[0].Endpoint).To(Equal(netbox.EndpointDeviceRoles))
		Expect(writes[0].Body).To(HaveKeyWithValue("vm_role", true))
		Expect(writes[0].Body).To(HaveKeyWithValue("color", "2196f3"))
	})

	It("rejects invalid payloads before calling the API", func() {
		_, err := client.Create(context.TODO(), netbox.EndpointIPAddresses, netbox.IPAddress{Address: "10.0.0.1", Status: netbox.StatusActive})
		Expect(err).NotTo(BeNil())
		Expect(fake.Writes("")).To(BeEmpty())
	})

	It("partially updates objects", func() {
		id := fake.Seed(netbox.EndpointVirtualMachines, map[string]any{"name": "APP01", "vcpus": 1, "serial": "keep"})

		_, err := client.Update(context.TODO(), netbox.EndpointVirtualMachines, id, netbox.VirtualMachine{
			Name: "APP01", Cluster: 3, VCPUs: 4, Memory: 8192, Status: netbox.StatusActive,
		})
		Expect(err).To(BeNil())

		vms := fake.Objects(netbox.EndpointVirtualMachines)
		Expect(vms).To(HaveLen(1))
		Expect(vms[0]).To(HaveKeyWithValue("vcpus", BeNumerically("==", 4)))
		Expect(vms[0]).To(HaveKeyWithValue("serial", "keep"))
		Expect(vms[0]).NotTo(HaveKey("role"))
	})

	It("surfaces API errors", func() {
		fake.FailWrites(netbox.EndpointTenants, http.StatusForbidden)

		_, err := client.Create(context.TODO(), netbox.EndpointTenants, netbox.Tenant{Name: "ATI", Slug: "ati"})
		var apiErr *netbox.APIError
		Expect(errors.As(err, &apiErr)).To(BeTrue())
		Expect(apiErr.StatusCode).To(Equal(http.StatusForbidden))
		Expect(apiErr.Method).To(Equal(http.MethodPost))
	})
})
