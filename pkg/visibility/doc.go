// Package visibility carries the read permission a lineage request runs under.
//
// Permission computation is not done here. A Filter is produced once per
// request (from an API token, CLI flags, or a test) and then passed explicitly
// to every store read the walker performs. Stores evaluate it either in memory
// with Permits or in SQL by restricting owner_uuid to Filter.Readers.
//
// Tokens map onto filters through a YAML file:
//
//	tokens:
//	  - token: s3cr3t
//	    user: zzzzz-tpzed-000000000000001
//	    readers:
//	      - zzzzz-tpzed-000000000000001
//	      - zzzzz-j7d0g-000000000000002
//	  - token: adm1n
//	    user: zzzzz-tpzed-000000000000000
//	    admin: true
package visibility
