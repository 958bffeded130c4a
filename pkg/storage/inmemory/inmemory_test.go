package inmemory_test

import (
	. "github.com/onsi/ginkgo/v2"

	"github.com/papercomputeco/researcher/pkg/storage"
	"github.com/papercomputeco/researcher/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/researcher/pkg/utils/test"
)

var _ = Describe("Driver", func() {
	testutils.DescribeStorageDriver(func() storage.Driver {
		return inmemory.NewDriver()
	})
})
