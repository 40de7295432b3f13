package tree

// Seed returns the sample tree a fresh guest workspace starts with.
func Seed(rootName string) *Node {
	t := Default(rootName)
	t.Children = []*Node{
		{
			ID:   "folder-src",
			Kind: KindFolder,
			Name: "src",
			Children: []*Node{
				sampleFile("file-main-py", "main.py", "# Start coding in Python\nprint('Hello, world!')"),
				{
					ID:   "folder-components",
					Kind: KindFolder,
					Name: "components",
					Children: []*Node{
						sampleFile("file-button-jsx", "Button.jsx",
							"// React component\nexport default function Button() {\n  return <button>Click Me</button>;\n}"),
					},
				},
			},
		},
		sampleFile("file-readme-md", "README.md", "# Project Documentation\nWelcome to your project!"),
	}
	return t
}

// WelcomeContent is the body of the file every new project starts with.
const WelcomeContent = "// Welcome to your new project!\nconsole.log(\"Hello, World!\");"

// Welcome returns the tree stored with a newly created project.
func Welcome(rootName string) *Node {
	if rootName == "" {
		rootName = "welcome"
	}
	t := Default(rootName)
	f := NewFile("index.js", WelcomeContent)
	t.Children = []*Node{f}
	return t
}

func sampleFile(id, name, content string) *Node {
	return &Node{
		ID:        id,
		Kind:      KindFile,
		Name:      name,
		Content:   content,
		Language:  Language(name),
		UpdatedAt: now(),
	}
}
